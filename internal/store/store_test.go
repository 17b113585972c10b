package store

import (
	"errors"
	"testing"

	"github.com/bugspotter/intelligence/internal/vector"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertBug(t *testing.T, db *DB, bugID, title string, embedding []float32) {
	t.Helper()
	err := db.UpsertBug(&Bug{
		BugID:          bugID,
		Title:          title,
		Embedding:      vector.Encode(embedding),
		EmbeddingModel: "test-model",
	})
	if err != nil {
		t.Fatalf("upserting bug %s: %v", bugID, err)
	}
}

func TestMigration(t *testing.T) {
	db := setupTestDB(t)

	var version int
	err := db.Conn().QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		t.Fatalf("failed to read user_version: %v", err)
	}
	if version != 1 {
		t.Errorf("expected user_version 1, got %d", version)
	}
}

func TestUpsertAndGetBug(t *testing.T) {
	db := setupTestDB(t)

	err := db.UpsertBug(&Bug{
		BugID:          "bug-1",
		Title:          "Login crashes",
		Description:    "Crash on submit",
		Embedding:      vector.Encode([]float32{1, 0, 0}),
		EmbeddingModel: "all-minilm",
	})
	if err != nil {
		t.Fatalf("UpsertBug failed: %v", err)
	}

	got, err := db.GetBug("bug-1")
	if err != nil {
		t.Fatalf("GetBug failed: %v", err)
	}
	if got.Title != "Login crashes" {
		t.Errorf("expected title 'Login crashes', got %q", got.Title)
	}
	if got.Description != "Crash on submit" {
		t.Errorf("expected description, got %q", got.Description)
	}
	if got.Status != StatusOpen {
		t.Errorf("expected status 'open', got %q", got.Status)
	}
	if got.Resolution != "" {
		t.Errorf("expected empty resolution, got %q", got.Resolution)
	}
	if len(got.Embedding) != 12 {
		t.Errorf("expected 12-byte embedding blob, got %d", len(got.Embedding))
	}
	if got.LastAccessed == nil {
		t.Error("expected last_accessed to be set")
	}
}

func TestGetBug_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetBug("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertBug_OverwritePreservesCreatedAtAndStatus(t *testing.T) {
	db := setupTestDB(t)

	insertBug(t, db, "bug-1", "Original title", []float32{1, 0})
	first, err := db.GetBug("bug-1")
	if err != nil {
		t.Fatalf("GetBug failed: %v", err)
	}

	// Resolve it, then re-analyze.
	if err := db.UpdateResolution("bug-1", "Fixed it", "summary", StatusResolved); err != nil {
		t.Fatalf("UpdateResolution failed: %v", err)
	}

	insertBug(t, db, "bug-1", "Rewritten title", []float32{0, 1})
	second, err := db.GetBug("bug-1")
	if err != nil {
		t.Fatalf("GetBug failed: %v", err)
	}

	if second.Title != "Rewritten title" {
		t.Errorf("expected overwritten title, got %q", second.Title)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at must be preserved: %v vs %v", second.CreatedAt, first.CreatedAt)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Errorf("updated_at must be refreshed: %v vs %v", second.UpdatedAt, first.UpdatedAt)
	}
	if second.Status != StatusResolved {
		t.Errorf("re-analysis must not reset status, got %q", second.Status)
	}
	if second.Resolution != "Fixed it" {
		t.Errorf("re-analysis must not clear resolution, got %q", second.Resolution)
	}
}

func TestUpdateResolution(t *testing.T) {
	db := setupTestDB(t)
	insertBug(t, db, "bug-1", "Crash", []float32{1})

	err := db.UpdateResolution("bug-1", "Added null check", "Added a null check.", StatusResolved)
	if err != nil {
		t.Fatalf("UpdateResolution failed: %v", err)
	}

	got, err := db.GetBug("bug-1")
	if err != nil {
		t.Fatalf("GetBug failed: %v", err)
	}
	if got.Resolution != "Added null check" {
		t.Errorf("expected verbatim resolution, got %q", got.Resolution)
	}
	if got.ResolutionSummary != "Added a null check." {
		t.Errorf("expected summary, got %q", got.ResolutionSummary)
	}
	if got.Status != StatusResolved {
		t.Errorf("expected status resolved, got %q", got.Status)
	}
}

func TestUpdateResolution_NotFound(t *testing.T) {
	db := setupTestDB(t)

	err := db.UpdateResolution("missing", "fix", "", StatusResolved)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidResolutionStatus(t *testing.T) {
	for _, s := range []string{StatusResolved, StatusClosed, StatusWontFix} {
		if !ValidResolutionStatus(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []string{StatusOpen, StatusDuplicate, "fixed", ""} {
		if ValidResolutionStatus(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestQueryNearest_OrderAndThreshold(t *testing.T) {
	db := setupTestDB(t)

	insertBug(t, db, "bug-a", "Exact match", []float32{1, 0, 0})
	insertBug(t, db, "bug-b", "Close match", []float32{0.9, 0.1, 0})
	insertBug(t, db, "bug-c", "Unrelated", []float32{0, 0, 1})

	results, err := db.QueryNearest([]float32{1, 0, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("QueryNearest failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d", len(results))
	}
	if results[0].BugID != "bug-a" || results[1].BugID != "bug-b" {
		t.Errorf("expected similarity-descending order, got %s, %s", results[0].BugID, results[1].BugID)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results not sorted by similarity descending")
	}
}

func TestQueryNearest_ExcludesDuplicates(t *testing.T) {
	db := setupTestDB(t)

	insertBug(t, db, "bug-a", "Original", []float32{1, 0})
	insertBug(t, db, "bug-b", "The duplicate", []float32{1, 0})

	// Mark bug-b as a duplicate directly; it must never come back as a candidate.
	if _, err := db.Conn().Exec(`UPDATE bugs SET status = ? WHERE bug_id = ?`, StatusDuplicate, "bug-b"); err != nil {
		t.Fatalf("marking duplicate: %v", err)
	}

	results, err := db.QueryNearest([]float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("QueryNearest failed: %v", err)
	}
	for _, r := range results {
		if r.BugID == "bug-b" {
			t.Error("duplicate-status bug returned from similarity search")
		}
	}
}

func TestQueryNearest_TieBreakByBugID(t *testing.T) {
	db := setupTestDB(t)

	// Identical vectors produce identical scores.
	insertBug(t, db, "bug-z", "Copy two", []float32{1, 0})
	insertBug(t, db, "bug-a", "Copy one", []float32{1, 0})

	results, err := db.QueryNearest([]float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("QueryNearest failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].BugID != "bug-a" {
		t.Errorf("equal scores must be ordered by bug_id, got %s first", results[0].BugID)
	}
}

func TestQueryNearest_Limit(t *testing.T) {
	db := setupTestDB(t)

	insertBug(t, db, "bug-1", "One", []float32{1, 0})
	insertBug(t, db, "bug-2", "Two", []float32{1, 0.01})
	insertBug(t, db, "bug-3", "Three", []float32{1, 0.02})

	results, err := db.QueryNearest([]float32{1, 0}, 2, 0)
	if err != nil {
		t.Fatalf("QueryNearest failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected limit of 2 to apply, got %d results", len(results))
	}
}

func TestQueryNearest_SkipsDimensionMismatch(t *testing.T) {
	db := setupTestDB(t)

	insertBug(t, db, "bug-1", "Two dims", []float32{1, 0})
	insertBug(t, db, "bug-2", "Three dims", []float32{1, 0, 0})

	results, err := db.QueryNearest([]float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("QueryNearest failed: %v", err)
	}
	if len(results) != 1 || results[0].BugID != "bug-1" {
		t.Errorf("expected only the matching-dimension bug, got %+v", results)
	}
}

func TestGetStats(t *testing.T) {
	db := setupTestDB(t)

	insertBug(t, db, "bug-1", "One", []float32{1})
	insertBug(t, db, "bug-2", "Two", []float32{1})
	if err := db.UpdateResolution("bug-2", "fix", "", StatusResolved); err != nil {
		t.Fatalf("UpdateResolution failed: %v", err)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalBugs != 2 {
		t.Errorf("expected 2 bugs, got %d", stats.TotalBugs)
	}
	if stats.EmbeddedBugs != 2 {
		t.Errorf("expected 2 embedded bugs, got %d", stats.EmbeddedBugs)
	}
	if stats.CountByStatus[StatusOpen] != 1 || stats.CountByStatus[StatusResolved] != 1 {
		t.Errorf("unexpected status counts: %v", stats.CountByStatus)
	}
}
