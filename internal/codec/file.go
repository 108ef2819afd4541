package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"netlayers/internal/domain"
)

// File suffixes used next to a project file
const (
	BackupSuffix  = ".backup"
	TempSuffix    = ".tmp"
	RestoreSuffix = ".temp"
)

// LoadReport describes what a lenient load had to repair
type LoadReport struct {
	// Defaulted lists the layers whose connection section was missing
	Defaulted []domain.Layer `json:"defaulted,omitempty"`
}

// Repaired reports whether anything was defaulted
func (r LoadReport) Repaired() bool {
	return len(r.Defaulted) > 0
}

// BackupPath returns the backup location of a project file
func BackupPath(path string) string {
	return path + BackupSuffix
}

// Save writes doc to path. The document is first written and synced to a
// temp file; the previous file then becomes path.backup, replacing any older
// backup, and the temp file is renamed into place. On failure the previous
// file is left at path.
func Save(doc *domain.Document, path string) error {
	doc.Metadata.Modified = domain.NewTimestamp(time.Now().UTC())
	if doc.Metadata.Version == "" {
		doc.Metadata.Version = domain.DocumentVersion
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &domain.IOError{Op: "create directory", Path: dir, Err: err}
		}
	}

	tmp := path + TempSuffix
	if err := writeSynced(tmp, doc, ForPath(path)); err != nil {
		os.Remove(tmp)
		return err
	}

	backup := BackupPath(path)
	hadPrevious := false
	if _, err := os.Stat(path); err == nil {
		hadPrevious = true
		if err := os.Remove(backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
			os.Remove(tmp)
			return &domain.IOError{Op: "remove backup", Path: backup, Err: err}
		}
		if err := os.Rename(path, backup); err != nil {
			os.Remove(tmp)
			return &domain.IOError{Op: "rotate backup", Path: path, Err: err}
		}
	}

	if err := os.Rename(tmp, path); err != nil {
		if hadPrevious {
			if rerr := os.Rename(backup, path); rerr != nil {
				log.Printf("Codec: could not put %s back after failed save: %v", path, rerr)
			}
		}
		os.Remove(tmp)
		return &domain.IOError{Op: "replace", Path: path, Err: err}
	}

	log.Printf("Codec: saved %s (%d nodes, %d connections)", path, len(doc.Nodes), doc.ConnectionCount())
	return nil
}

func writeSynced(path string, doc *domain.Document, c Codec) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &domain.IOError{Op: "create", Path: path, Err: err}
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := c.Encode(doc, w); err != nil {
		return &domain.IOError{Op: "encode", Path: path, Err: err}
	}
	if err := w.Flush(); err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &domain.IOError{Op: "sync", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &domain.IOError{Op: "close", Path: path, Err: err}
	}
	return nil
}

// Load reads a project file. Missing connection sections are defaulted to
// empty.
func Load(path string) (*domain.Document, error) {
	doc, _, err := LoadWithReport(path)
	return doc, err
}

// LoadWithReport reads a project file leniently and reports what it had to
// default
func LoadWithReport(path string) (*domain.Document, LoadReport, error) {
	doc, err := read(path)
	if err != nil {
		return nil, LoadReport{}, err
	}

	report := LoadReport{Defaulted: doc.FillDefaults()}
	if report.Repaired() {
		log.Printf("Codec: %s is missing connection sections %v, defaulted to empty", path, report.Defaulted)
	}
	return doc, report, nil
}

// LoadStrict reads a project file and rejects documents with missing
// sections
func LoadStrict(path string) (*domain.Document, error) {
	doc, err := read(path)
	if err != nil {
		return nil, err
	}
	if missing := doc.MissingSections(); len(missing) > 0 {
		return nil, &domain.ValidationError{
			Field:  fmt.Sprintf("topologies.%s.connections", missing[0]),
			Reason: "required section is missing",
		}
	}
	return doc, nil
}

// Decode reads a document from r in the given format and defaults missing
// sections
func Decode(r io.Reader, c Codec) (*domain.Document, LoadReport, error) {
	doc, err := c.Decode(r)
	if err != nil {
		return nil, LoadReport{}, err
	}
	return doc, LoadReport{Defaulted: doc.FillDefaults()}, nil
}

func read(path string) (*domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.NotFoundError{Kind: "file", Key: path}
		}
		return nil, &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	doc, err := ForPath(path).Decode(bufio.NewReader(f))
	if err != nil {
		var perr *domain.ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return doc, nil
}

// CreateBackup copies the project file to path.backup and returns the
// backup path
func CreateBackup(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &domain.NotFoundError{Kind: "file", Key: path}
		}
		return "", &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer src.Close()

	backup := BackupPath(path)
	dst, err := os.Create(backup)
	if err != nil {
		return "", &domain.IOError{Op: "create", Path: backup, Err: err}
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", &domain.IOError{Op: "copy", Path: backup, Err: err}
	}
	if err := dst.Close(); err != nil {
		return "", &domain.IOError{Op: "close", Path: backup, Err: err}
	}
	return backup, nil
}

// RestoreBackup puts path.backup in place of path. The current file is kept
// as path.temp.
func RestoreBackup(path string) error {
	backup := BackupPath(path)
	if _, err := os.Stat(backup); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &domain.NotFoundError{Kind: "backup", Key: backup}
		}
		return &domain.IOError{Op: "stat", Path: backup, Err: err}
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+RestoreSuffix); err != nil {
			return &domain.IOError{Op: "move aside", Path: path, Err: err}
		}
	}
	if err := os.Rename(backup, path); err != nil {
		return &domain.IOError{Op: "restore", Path: path, Err: err}
	}
	return nil
}

// IsProjectFile reports whether path looks like something Load can read
func IsProjectFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
