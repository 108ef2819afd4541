package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"netlayers/internal/domain"
	"netlayers/internal/repository"
)

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual any) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

func testDocument(name string, nodes int) *domain.Document {
	doc := domain.NewDocument(name)
	for i := 1; i <= nodes; i++ {
		doc.Nodes = append(doc.Nodes, *domain.NewNode(i))
	}
	if nodes >= 2 {
		doc.Topologies.L1.Connections = []domain.Connection{{Source: 1, Target: 2, Type: "ethernet"}}
	}
	return doc
}

func TestNullHelpers(t *testing.T) {
	assertEqual(t, "", nullToString(stringToNull("")))
	assertEqual(t, "x", nullToString(stringToNull("x")))
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, err := repo.SaveSnapshot(ctx, "/p/lab.json", testDocument("lab", 2))
	assertNoError(t, err)
	assertEqual(t, 2, first.NodeCount)
	assertEqual(t, 1, first.ConnectionCount)

	second, err := repo.SaveSnapshot(ctx, "/p/lab.json", testDocument("lab", 3))
	assertNoError(t, err)
	_, err = repo.SaveSnapshot(ctx, "/p/other.json", testDocument("other", 1))
	assertNoError(t, err)

	t.Run("list newest first", func(t *testing.T) {
		snaps, err := repo.ListSnapshots(ctx, "/p/lab.json")
		assertNoError(t, err)
		assertEqual(t, 2, len(snaps))
		assertEqual(t, second.ID, snaps[0].ID)
		if snaps[0].Document != nil {
			t.Error("list should not carry documents")
		}
	})

	t.Run("get carries document", func(t *testing.T) {
		snap, err := repo.GetSnapshot(ctx, first.ID)
		assertNoError(t, err)
		if snap.Document == nil || len(snap.Document.Nodes) != 2 {
			t.Fatalf("expected stored document, got %+v", snap.Document)
		}
		assertEqual(t, "lab", snap.Document.Metadata.Name)
		assertEqual(t, 1, len(snap.Document.Topologies.L1.Connections))
	})

	t.Run("missing snapshot", func(t *testing.T) {
		_, err := repo.GetSnapshot(ctx, "nope")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("pruned per path", func(t *testing.T) {
		for i := 0; i < repository.MaxSnapshotsPerPath+5; i++ {
			_, err := repo.SaveSnapshot(ctx, "/p/busy.json", testDocument("busy", 1))
			assertNoError(t, err)
		}
		snaps, err := repo.ListSnapshots(ctx, "/p/busy.json")
		assertNoError(t, err)
		assertEqual(t, repository.MaxSnapshotsPerPath, len(snaps))

		others, err := repo.ListSnapshots(ctx, "/p/other.json")
		assertNoError(t, err)
		assertEqual(t, 1, len(others))
	})
}

func TestRecentFiles(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	t.Run("empty", func(t *testing.T) {
		files, err := repo.RecentFiles(ctx)
		assertNoError(t, err)
		assertEqual(t, 0, len(files))
	})

	t.Run("most recent first and capped", func(t *testing.T) {
		for i := 0; i < 12; i++ {
			assertNoError(t, repo.TouchRecent(ctx, fmt.Sprintf("/p/%d.json", i), fmt.Sprintf("p%d", i)))
		}
		files, err := repo.RecentFiles(ctx)
		assertNoError(t, err)
		assertEqual(t, repository.MaxRecentFiles, len(files))
		assertEqual(t, "/p/11.json", files[0].Path)
		assertEqual(t, "/p/2.json", files[len(files)-1].Path)
	})

	t.Run("touch moves to top without duplicating", func(t *testing.T) {
		assertNoError(t, repo.TouchRecent(ctx, "/p/5.json", "renamed"))
		files, err := repo.RecentFiles(ctx)
		assertNoError(t, err)
		assertEqual(t, repository.MaxRecentFiles, len(files))
		assertEqual(t, "/p/5.json", files[0].Path)
		assertEqual(t, "renamed", files[0].Name)
	})

	t.Run("remove", func(t *testing.T) {
		assertNoError(t, repo.RemoveRecent(ctx, "/p/5.json"))
		if err := repo.RemoveRecent(ctx, "/p/5.json"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("empty path rejected", func(t *testing.T) {
		if err := repo.TouchRecent(ctx, "  ", ""); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestFileDatabasePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	repo, err := New(path)
	assertNoError(t, err)
	assertNoError(t, repo.TouchRecent(ctx, "/p/lab.json", "lab"))
	assertNoError(t, repo.Close())

	reopened, err := New(path)
	assertNoError(t, err)
	defer reopened.Close()

	files, err := reopened.RecentFiles(ctx)
	assertNoError(t, err)
	assertEqual(t, 1, len(files))
	assertEqual(t, "lab", files[0].Name)
}
