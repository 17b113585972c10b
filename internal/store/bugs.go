package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bugspotter/intelligence/internal/vector"
)

// ErrNotFound is returned when a bug does not exist (or lacks the data the
// caller asked for, such as an embedding).
var ErrNotFound = errors.New("bug not found")

// Bug statuses. A bug starts open and is moved to a terminal status when the
// main tracker resolves it; duplicates are excluded from similarity search.
const (
	StatusOpen      = "open"
	StatusResolved  = "resolved"
	StatusClosed    = "closed"
	StatusWontFix   = "wont_fix"
	StatusDuplicate = "duplicate"
)

// ValidResolutionStatus reports whether status is acceptable for a resolution
// update.
func ValidResolutionStatus(status string) bool {
	switch status {
	case StatusResolved, StatusClosed, StatusWontFix:
		return true
	}
	return false
}

// Bug is the persisted record for a single bug_id.
type Bug struct {
	BugID             string
	Title             string
	Description       string
	Status            string
	Resolution        string
	ResolutionSummary string
	Embedding         []byte
	EmbeddingModel    string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastAccessed      *time.Time
}

// SimilarBug is a single nearest-neighbor search result.
type SimilarBug struct {
	BugID       string
	Title       string
	Description string
	Status      string
	Resolution  string
	Similarity  float64
}

// UpsertBug inserts a bug or overwrites its content and embedding fields.
// Re-analysis of an existing bug_id overwrites title, description, embedding,
// updated_at and last_accessed unconditionally; created_at and any resolution
// state are preserved.
func (d *DB) UpsertBug(bug *Bug) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := d.db.Exec(`
		INSERT INTO bugs (bug_id, title, description, embedding, embedding_model, status, created_at, updated_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bug_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			embedding = excluded.embedding,
			embedding_model = excluded.embedding_model,
			updated_at = excluded.updated_at,
			last_accessed = excluded.last_accessed`,
		bug.BugID, bug.Title, nullable(bug.Description), bug.Embedding,
		nullable(bug.EmbeddingModel), StatusOpen, now, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting bug: %w", err)
	}
	return nil
}

// GetBug retrieves a bug by ID. Returns ErrNotFound when absent.
func (d *DB) GetBug(bugID string) (*Bug, error) {
	row := d.db.QueryRow(`
		SELECT bug_id, title, description, status, resolution, resolution_summary,
		       embedding, embedding_model, created_at, updated_at, last_accessed
		FROM bugs WHERE bug_id = ?`,
		bugID,
	)

	var bug Bug
	var description, resolution, summary, embeddingModel, lastAccessed sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&bug.BugID, &bug.Title, &description, &bug.Status, &resolution, &summary,
		&bug.Embedding, &embeddingModel, &createdAt, &updatedAt, &lastAccessed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, bugID)
		}
		return nil, fmt.Errorf("scanning bug: %w", err)
	}

	bug.Description = description.String
	bug.Resolution = resolution.String
	bug.ResolutionSummary = summary.String
	bug.EmbeddingModel = embeddingModel.String
	bug.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	bug.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	if lastAccessed.Valid {
		t, _ := time.Parse(time.RFC3339, lastAccessed.String)
		bug.LastAccessed = &t
	}

	return &bug, nil
}

// UpdateResolution overwrites a bug's resolution fields and status, refreshing
// updated_at. No history is retained. Returns ErrNotFound when the bug does
// not exist.
func (d *DB) UpdateResolution(bugID, resolution, resolutionSummary, status string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := d.db.Exec(`
		UPDATE bugs SET resolution = ?, resolution_summary = ?, status = ?, updated_at = ?
		WHERE bug_id = ?`,
		resolution, nullable(resolutionSummary), status, now, bugID,
	)
	if err != nil {
		return fmt.Errorf("updating resolution: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, bugID)
	}
	return nil
}

// QueryNearest returns the bugs whose embeddings are most similar to the query
// vector, up to limit results with similarity >= threshold. Bugs marked as
// duplicates are never returned: they must not become candidates for further
// deduplication. Results are sorted by similarity descending; equal scores are
// ordered by bug_id for determinism.
//
// The scan is brute-force over all embedded rows, which is exact and fast
// enough for the corpus sizes a single tracker produces.
func (d *DB) QueryNearest(query []float32, limit int, threshold float64) ([]SimilarBug, error) {
	rows, err := d.db.Query(`
		SELECT bug_id, title, description, status, resolution, embedding
		FROM bugs WHERE embedding IS NOT NULL AND status != ?`,
		StatusDuplicate,
	)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var results []SimilarBug
	for rows.Next() {
		var sb SimilarBug
		var description, resolution sql.NullString
		var embedding []byte

		if err := rows.Scan(&sb.BugID, &sb.Title, &description, &sb.Status, &resolution, &embedding); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		sb.Description = description.String
		sb.Resolution = resolution.String

		stored := vector.Decode(embedding)
		if len(stored) == 0 {
			continue
		}

		score, err := vector.CosineSimilarity(query, stored)
		if err != nil {
			continue // skip dimension mismatches silently
		}
		if score < threshold {
			continue
		}

		sb.Similarity = score
		results = append(results, sb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].BugID < results[j].BugID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
