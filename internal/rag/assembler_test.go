package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bugspotter/intelligence/internal/dedup"
	"github.com/bugspotter/intelligence/internal/provider"
	"github.com/bugspotter/intelligence/internal/pubsub"
	"github.com/bugspotter/intelligence/internal/store"
)

// mockGenerator records the last prompt and options it was called with.
type mockGenerator struct {
	response string
	err      error

	lastPrompt string
	lastOpts   provider.GenerateOptions
	calls      int
}

func (m *mockGenerator) Generate(_ context.Context, prompt string, opts provider.GenerateOptions) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	m.lastOpts = opts
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

// stubSimilarity returns a fixed similarity result.
type stubSimilarity struct {
	result *dedup.SimilarResult
	err    error
	calls  int
}

func (s *stubSimilarity) FindSimilar(bugID string, _ float64, _ int) (*dedup.SimilarResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertBug(t *testing.T, db *store.DB, bugID, title, description string) {
	t.Helper()
	if err := db.UpsertBug(&store.Bug{BugID: bugID, Title: title, Description: description}); err != nil {
		t.Fatalf("upserting bug %s: %v", bugID, err)
	}
}

func TestMitigationSuggestion_WithResolvedContext(t *testing.T) {
	db := setupTestDB(t)
	insertBug(t, db, "bug-1", "Login crashes", "NPE on submit")

	gen := &mockGenerator{response: "Add a null check before submit."}
	sim := &stubSimilarity{result: &dedup.SimilarResult{
		SimilarBugs: []store.SimilarBug{
			{BugID: "bug-2", Title: "Login crash on enter", Resolution: "Added null check", Similarity: 0.92},
			{BugID: "bug-3", Title: "Login slow", Resolution: "", Similarity: 0.80},
		},
	}}

	a := NewAssembler(db, sim, gen)
	got, err := a.MitigationSuggestion(context.Background(), "bug-1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Suggestion != "Add a null check before submit." {
		t.Errorf("unexpected suggestion %q", got.Suggestion)
	}
	if !got.BasedOnSimilarBugs {
		t.Error("expected based_on_similar_bugs=true")
	}

	// Only the resolved similar bug contributes context.
	if len(gen.lastOpts.Context) != 1 {
		t.Fatalf("expected 1 context entry, got %d", len(gen.lastOpts.Context))
	}
	want := "Similar bug: Login crash on enter\nResolution: Added null check"
	if gen.lastOpts.Context[0] != want {
		t.Errorf("context entry mismatch:\ngot:  %q\nwant: %q", gen.lastOpts.Context[0], want)
	}

	if gen.lastOpts.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %g", gen.lastOpts.Temperature)
	}
	if gen.lastOpts.MaxTokens != 300 {
		t.Errorf("expected 300 max tokens, got %d", gen.lastOpts.MaxTokens)
	}
}

func TestMitigationSuggestion_PromptShape(t *testing.T) {
	db := setupTestDB(t)
	insertBug(t, db, "bug-1", "Login crashes", "NPE on submit")

	gen := &mockGenerator{response: "ok"}
	a := NewAssembler(db, &stubSimilarity{}, gen)

	if _, err := a.MitigationSuggestion(context.Background(), "bug-1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Bug: Login crashes\nDescription: NPE on submit\n\nProvide a concise, actionable suggestion for how to fix or mitigate this issue."
	if gen.lastPrompt != want {
		t.Errorf("prompt mismatch:\ngot:  %q\nwant: %q", gen.lastPrompt, want)
	}
}

func TestMitigationSuggestion_NoDescription(t *testing.T) {
	db := setupTestDB(t)
	insertBug(t, db, "bug-1", "Login crashes", "")

	gen := &mockGenerator{response: "ok"}
	a := NewAssembler(db, &stubSimilarity{}, gen)

	if _, err := a.MitigationSuggestion(context.Background(), "bug-1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(gen.lastPrompt, "Description:") {
		t.Errorf("description line must be omitted when empty, got %q", gen.lastPrompt)
	}
}

func TestMitigationSuggestion_WithoutSimilarBugs(t *testing.T) {
	db := setupTestDB(t)
	insertBug(t, db, "bug-1", "Crash", "")

	gen := &mockGenerator{response: "ok"}
	sim := &stubSimilarity{result: &dedup.SimilarResult{}}
	a := NewAssembler(db, sim, gen)

	got, err := a.MitigationSuggestion(context.Background(), "bug-1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim.calls != 0 {
		t.Error("similarity search must be skipped when use_similar_bugs is false")
	}
	if got.BasedOnSimilarBugs {
		t.Error("expected based_on_similar_bugs=false")
	}
	if len(gen.lastOpts.Context) != 0 {
		t.Errorf("expected no context, got %v", gen.lastOpts.Context)
	}
}

func TestMitigationSuggestion_BugNotFound(t *testing.T) {
	db := setupTestDB(t)
	a := NewAssembler(db, &stubSimilarity{}, &mockGenerator{})

	_, err := a.MitigationSuggestion(context.Background(), "missing", true)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMitigationSuggestion_GeneratorError(t *testing.T) {
	db := setupTestDB(t)
	insertBug(t, db, "bug-1", "Crash", "")

	gen := &mockGenerator{err: fmt.Errorf("model overloaded: %w", provider.ErrRateLimit)}
	a := NewAssembler(db, &stubSimilarity{}, gen)

	_, err := a.MitigationSuggestion(context.Background(), "bug-1", false)
	if !errors.Is(err, provider.ErrRateLimit) {
		t.Fatalf("expected rate limit error to propagate, got %v", err)
	}
}

func TestUpdateResolution(t *testing.T) {
	db := setupTestDB(t)
	insertBug(t, db, "bug-1", "Crash", "")

	gen := &mockGenerator{response: "  Added a null check to the submit handler.\n"}
	a := NewAssembler(db, &stubSimilarity{}, gen)

	got, err := a.UpdateResolution(context.Background(), "bug-1", "Added null check in submit handler, line 42", store.StatusResolved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ResolutionSummary != "Added a null check to the submit handler." {
		t.Errorf("expected trimmed summary, got %q", got.ResolutionSummary)
	}
	if got.Status != store.StatusResolved {
		t.Errorf("expected resolved status, got %q", got.Status)
	}

	wantPrompt := "Summarize this bug resolution in one concise sentence:\n\nAdded null check in submit handler, line 42\n\nSummary:"
	if gen.lastPrompt != wantPrompt {
		t.Errorf("summary prompt mismatch:\ngot:  %q\nwant: %q", gen.lastPrompt, wantPrompt)
	}
	if gen.lastOpts.Temperature != 0.3 || gen.lastOpts.MaxTokens != 100 {
		t.Errorf("unexpected generation options: %+v", gen.lastOpts)
	}

	// Verbatim resolution and summary both persisted.
	bug, err := db.GetBug("bug-1")
	if err != nil {
		t.Fatalf("GetBug failed: %v", err)
	}
	if bug.Resolution != "Added null check in submit handler, line 42" {
		t.Errorf("expected verbatim resolution, got %q", bug.Resolution)
	}
	if bug.ResolutionSummary != "Added a null check to the submit handler." {
		t.Errorf("expected stored summary, got %q", bug.ResolutionSummary)
	}
}

func TestUpdateResolution_InvalidInput(t *testing.T) {
	db := setupTestDB(t)
	insertBug(t, db, "bug-1", "Crash", "")

	gen := &mockGenerator{response: "summary"}
	a := NewAssembler(db, &stubSimilarity{}, gen)

	_, err := a.UpdateResolution(context.Background(), "bug-1", "", store.StatusResolved)
	if !errors.Is(err, provider.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty resolution, got %v", err)
	}

	_, err = a.UpdateResolution(context.Background(), "bug-1", "fixed", "fixed")
	if !errors.Is(err, provider.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for invalid status, got %v", err)
	}
	if gen.calls != 0 {
		t.Error("invalid input must be rejected before any generation call")
	}
}

func TestUpdateResolution_NotFound(t *testing.T) {
	db := setupTestDB(t)
	a := NewAssembler(db, &stubSimilarity{}, &mockGenerator{response: "summary"})

	_, err := a.UpdateResolution(context.Background(), "missing", "fixed", store.StatusResolved)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateResolution_PublishesEvent(t *testing.T) {
	db := setupTestDB(t)
	insertBug(t, db, "bug-1", "Crash", "")

	broker := pubsub.NewBroker[dedup.BugEvent]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := broker.Subscribe(ctx)

	a := NewAssembler(db, &stubSimilarity{}, &mockGenerator{response: "summary"}, WithBroker(broker))
	if _, err := a.UpdateResolution(context.Background(), "bug-1", "fixed", store.StatusResolved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case evt := <-events:
		if evt.Type != pubsub.Resolved || evt.Payload.BugID != "bug-1" {
			t.Errorf("unexpected event %+v", evt)
		}
	default:
		t.Fatal("expected a resolved event to be published")
	}
}
