// Package icon resolves device icons and keeps them in a cache that lives
// for the process. Nothing here is global: the server builds one Cache and
// hands it to whoever serves icons.
package icon

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"
	"sync/atomic"

	"netlayers/internal/domain"
)

// DefaultFile is used for device types without their own icon
const DefaultFile = "workstation.png"

// Size is the edge length of generated icons
const Size = 60

// files maps device types to icon file names inside the icon directory
var files = map[domain.DeviceType]string{
	domain.DeviceHost:        "standard host.png",
	domain.DeviceWorkstation: "workstation.png",
	domain.DeviceServer:      "www server.png",
	domain.DeviceRouter:      "atm router.png",
	domain.DeviceSwitch:      "workgroup switch.png",
	domain.DeviceFirewall:    "firewall.png",
	domain.DeviceAccessPoint: "accesspoint.png",
	domain.DeviceGateway:     "universal gateway.png",
	domain.DevicePrinter:     "printer.png",
	domain.DeviceCamera:      "video camera.png",
	domain.DeviceFTPServer:   "storage server.png",
	domain.DeviceMailServer:  "www server.png",
	domain.DeviceDNSServer:   "www server.png",
}

// tints colour icons by status; online icons are drawn as is
var tints = map[domain.Status]string{
	domain.StatusOnline:      "",
	domain.StatusOffline:     "#9e9e9e",
	domain.StatusError:       "#e53935",
	domain.StatusMaintenance: "#fdd835",
}

// FileFor returns the icon file name for a device type
func FileFor(t domain.DeviceType) string {
	if f, ok := files[t]; ok {
		return f
	}
	return DefaultFile
}

// Icon is a resolved icon for one device type and status
type Icon struct {
	Type        domain.DeviceType `json:"type"`
	Status      domain.Status     `json:"status"`
	File        string            `json:"file"`
	Tint        string            `json:"tint,omitempty"`
	ContentType string            `json:"content_type"`
	ETag        string            `json:"etag"`
	Data        []byte            `json:"-"`
}

// Stats reports cache usage
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

type key struct {
	file   string
	status domain.Status
}

// Cache loads icons from an icon directory once per file and status.
// Entries stay until Invalidate or InvalidateAll is called, typically when
// the icon directory changes.
type Cache struct {
	fsys fs.FS

	mu      sync.RWMutex
	entries map[key]*Icon

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates a cache reading from fsys. With a nil fsys every icon is
// a generated placeholder.
func NewCache(fsys fs.FS) *Cache {
	return &Cache{fsys: fsys, entries: make(map[key]*Icon)}
}

// Get returns the icon for a device type and status. Missing icon files
// fall back to DefaultFile, then to a generated SVG.
func (c *Cache) Get(t domain.DeviceType, status domain.Status) (*Icon, error) {
	k := key{file: FileFor(t), status: status}

	c.mu.RLock()
	ic, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return ic, nil
	}
	c.misses.Add(1)

	ic, err := c.load(t, status, k.file)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.entries[k]; ok {
		ic = existing
	} else {
		c.entries[k] = ic
	}
	c.mu.Unlock()
	return ic, nil
}

func (c *Cache) load(t domain.DeviceType, status domain.Status, file string) (*Icon, error) {
	ic := &Icon{Type: t, Status: status, File: file, Tint: tints[status]}

	for _, name := range []string{file, DefaultFile} {
		data, err := c.read(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &domain.IOError{Op: "read icon", Path: name, Err: err}
		}
		ic.File = name
		ic.Data = data
		ic.ContentType = contentType(name)
		break
	}
	if ic.Data == nil {
		ic.File = ""
		ic.Data = placeholder(t, status)
		ic.ContentType = "image/svg+xml"
	}

	sum := sha256.Sum256(append([]byte(ic.Tint), ic.Data...))
	ic.ETag = `"` + hex.EncodeToString(sum[:8]) + `"`
	return ic, nil
}

func (c *Cache) read(name string) ([]byte, error) {
	if c.fsys == nil {
		return nil, fs.ErrNotExist
	}
	return fs.ReadFile(c.fsys, name)
}

// Invalidate drops every cached status of a device type's icon file and
// returns how many entries went
func (c *Cache) Invalidate(t domain.DeviceType) int {
	file := FileFor(t)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if k.file == file {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// InvalidateAll empties the cache
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[key]*Icon)
	return n
}

// Stats returns usage counters
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return Stats{Entries: n, Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".svg":
		return "image/svg+xml"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

// placeholder draws a labelled square in the status colour
func placeholder(t domain.DeviceType, status domain.Status) []byte {
	fill := tints[status]
	if fill == "" {
		fill = "#43a047"
	}
	label := string(t)
	if len(label) > 2 {
		label = label[:2]
	}
	return fmt.Appendf(nil,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
			`<rect x="2" y="2" width="%d" height="%d" rx="8" fill="%s"/>`+
			`<text x="50%%" y="55%%" text-anchor="middle" font-family="sans-serif" font-size="20" fill="#fff">%s</text>`+
			`</svg>`,
		Size, Size, Size, Size, Size-4, Size-4, fill, label)
}
