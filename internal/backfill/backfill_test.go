package backfill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mnemo-app/mnemo/internal/ai"
	"github.com/mnemo-app/mnemo/pkg/journal/mock"
	embmock "github.com/mnemo-app/mnemo/pkg/provider/embeddings/mock"
)

type stubResolver struct {
	providers *ai.Providers
	err       error
}

func (s stubResolver) Resolve(context.Context, string) (*ai.Providers, error) {
	return s.providers, s.err
}

const testDims = 4

func newTestBackfiller(store *mock.Store, embed *embmock.Provider, opts ...Option) *Backfiller {
	opts = append([]Option{WithDimensions(testDims)}, opts...)
	return New(stubResolver{providers: &ai.Providers{Embeddings: embed}}, store, opts...)
}

func seedMemories(t *testing.T, store *mock.Store, ownerID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := store.Create(context.Background(), ownerID, fmt.Sprintf("entry %d", i)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
}

func TestRunOnce_ConvergesOverRounds(t *testing.T) {
	store := &mock.Store{}
	seedMemories(t, store, "alice", 30)

	embed := &embmock.Provider{EmbedResult: []float32{1, 0, 0, 0}}
	bf := newTestBackfiller(store, embed)

	first, err := bf.RunOnce(context.Background(), "alice")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if first.Processed != DefaultBatchSize || first.Remaining != 5 {
		t.Errorf("round 1: want 25 processed / 5 remaining, got %+v", first)
	}

	second, err := bf.RunOnce(context.Background(), "alice")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if second.Processed != 5 || second.Remaining != 0 {
		t.Errorf("round 2: want 5 processed / 0 remaining, got %+v", second)
	}

	third, err := bf.RunOnce(context.Background(), "alice")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if third.Processed != 0 || third.Remaining != 0 {
		t.Errorf("round 3: want idle round, got %+v", third)
	}
}

func TestRunOnce_OldestFirst(t *testing.T) {
	store := &mock.Store{}
	ctx := context.Background()
	oldest, err := store.Create(ctx, "alice", "the oldest entry")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	seedMemories(t, store, "alice", 3)

	embed := &embmock.Provider{EmbedResult: []float32{1, 0, 0, 0}}
	bf := newTestBackfiller(store, embed, WithBatchSize(1))

	if _, err := bf.RunOnce(ctx, "alice"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if store.Embedding(oldest.ID) == nil {
		t.Error("oldest memory should be embedded first")
	}
}

func TestRunOnce_ProviderFailureSkipsRecord(t *testing.T) {
	store := &mock.Store{}
	seedMemories(t, store, "alice", 3)

	// The second text fails persistently; the others embed fine.
	embed := &embmock.Provider{EmbedFunc: func(text string) ([]float32, error) {
		if strings.Contains(text, "1") {
			return nil, errors.New("model refused")
		}
		return []float32{1, 0, 0, 0}, nil
	}}
	bf := newTestBackfiller(store, embed)

	progress, err := bf.RunOnce(context.Background(), "alice")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if progress.Processed != 2 || progress.Skipped != 1 || progress.Remaining != 1 {
		t.Errorf("want 2 processed / 1 skipped / 1 remaining, got %+v", progress)
	}
}

func TestRunOnce_StoreFailureAborts(t *testing.T) {
	store := &mock.Store{}
	seedMemories(t, store, "alice", 2)
	store.SetEmbeddingErr = errors.New("disk full")

	embed := &embmock.Provider{EmbedResult: []float32{1, 0, 0, 0}}
	bf := newTestBackfiller(store, embed)

	if _, err := bf.RunOnce(context.Background(), "alice"); err == nil {
		t.Fatal("want error when the store rejects writes")
	}
}

func TestRunOnce_NoProviderIsIdle(t *testing.T) {
	store := &mock.Store{}
	seedMemories(t, store, "alice", 4)

	// Any store access would fail; the no-provider round must not make one.
	store.CountErr = errors.New("store must not be touched")
	store.ListUnembeddedErr = errors.New("store must not be touched")

	bf := New(stubResolver{err: ai.ErrNoProvider}, store, WithDimensions(testDims))

	progress, err := bf.RunOnce(context.Background(), "alice")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if progress.Processed != 0 || progress.Skipped != 0 || progress.Remaining != 0 {
		t.Errorf("want an idle zero round, got %+v", progress)
	}
}

func TestRunOnce_NormalizesBeforeStoring(t *testing.T) {
	store := &mock.Store{}
	ctx := context.Background()
	m, err := store.Create(ctx, "alice", "short vector")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	embed := &embmock.Provider{EmbedResult: []float32{1, 2}}
	bf := newTestBackfiller(store, embed)

	if _, err := bf.RunOnce(ctx, "alice"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	stored := store.Embedding(m.ID)
	if len(stored) != testDims {
		t.Fatalf("stored embedding length: want %d, got %d", testDims, len(stored))
	}
	if stored[0] != 1 || stored[1] != 2 || stored[2] != 0 || stored[3] != 0 {
		t.Errorf("stored embedding: want zero-padded [1 2 0 0], got %v", stored)
	}
}

func TestStatus(t *testing.T) {
	store := &mock.Store{}
	ctx := context.Background()
	seedMemories(t, store, "alice", 3)
	m, err := store.Create(ctx, "alice", "embedded one")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.SetEmbedding(ctx, "alice", m.ID, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("SetEmbedding: %v", err)
	}

	bf := newTestBackfiller(store, &embmock.Provider{})
	status, err := bf.Status(ctx, "alice")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Total != 4 || status.Embedded != 1 || status.Unembedded != 3 {
		t.Errorf("Status: got %+v", status)
	}
}

func TestEmbedOne(t *testing.T) {
	store := &mock.Store{}
	ctx := context.Background()
	m, err := store.Create(ctx, "alice", "fresh entry")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	embed := &embmock.Provider{EmbedResult: []float32{0, 1, 0, 0}}
	bf := newTestBackfiller(store, embed)

	if err := bf.EmbedOne(ctx, "alice", m.ID, m.Content); err != nil {
		t.Fatalf("EmbedOne: %v", err)
	}
	if store.Embedding(m.ID) == nil {
		t.Error("EmbedOne should store the embedding")
	}

	// Without a provider it is a silent no-op.
	none := New(stubResolver{err: ai.ErrNoProvider}, store, WithDimensions(testDims))
	if err := none.EmbedOne(ctx, "alice", m.ID, m.Content); err != nil {
		t.Errorf("EmbedOne without provider: want nil, got %v", err)
	}
}
