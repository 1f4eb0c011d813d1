package mcptools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mnemo-app/mnemo/internal/ai"
	"github.com/mnemo-app/mnemo/internal/backfill"
	"github.com/mnemo-app/mnemo/internal/media"
	"github.com/mnemo-app/mnemo/internal/search"
	"github.com/mnemo-app/mnemo/internal/tagging"
	"github.com/mnemo-app/mnemo/pkg/journal"
	"github.com/mnemo-app/mnemo/pkg/journal/mock"
	chatmock "github.com/mnemo-app/mnemo/pkg/provider/chat/mock"
	embmock "github.com/mnemo-app/mnemo/pkg/provider/embeddings/mock"
)

const testDims = 4

type stubResolver struct {
	providers *ai.Providers
	err       error
}

func (s stubResolver) Resolve(context.Context, string) (*ai.Providers, error) {
	return s.providers, s.err
}

// newTestServer wires a Server over the in-memory store with a stubbed
// provider chain. Pass a nil resolver error for a working provider.
func newTestServer(store *mock.Store, emb *embmock.Provider, resolveErr error) *Server {
	resolver := stubResolver{
		providers: &ai.Providers{Embeddings: emb, Chat: &chatmock.Provider{CompleteResult: `{"suggestions": []}`}},
		err:       resolveErr,
	}
	return NewServer(Deps{
		OwnerID:    "local",
		Store:      store,
		Tags:       store,
		Stats:      store,
		Resolver:   resolver,
		Searcher:   search.NewEngine(resolver, store, media.NoSigner{}, search.WithDimensions(testDims)),
		Backfiller: backfill.New(resolver, store, backfill.WithDimensions(testDims)),
		Discovery:  tagging.New(resolver, store, store),
	})
}

func TestCreateMemory_EmbedsInline(t *testing.T) {
	store := &mock.Store{}
	emb := &embmock.Provider{EmbedResult: []float32{1, 0, 0, 0}}
	srv := newTestServer(store, emb, nil)

	_, out, err := srv.createMemory(context.Background(), nil, createMemoryInput{Content: "first entry"})
	if err != nil {
		t.Fatalf("create_memory: %v", err)
	}
	if out.Memory.ID == "" || out.Memory.Content != "first entry" {
		t.Errorf("memory payload: got %+v", out.Memory)
	}
	if !out.Embedded {
		t.Error("memory should be embedded inline when a provider is available")
	}
	if got := store.Embedding(out.Memory.ID); len(got) != testDims {
		t.Errorf("stored embedding: got %v", got)
	}
}

func TestCreateMemory_NoProviderLeavesBacklog(t *testing.T) {
	store := &mock.Store{}
	srv := newTestServer(store, &embmock.Provider{}, ai.ErrNoProvider)

	_, out, err := srv.createMemory(context.Background(), nil, createMemoryInput{Content: "offline entry"})
	if err != nil {
		t.Fatalf("create_memory: %v", err)
	}
	// EmbedOne treats a missing provider as a silent no-op, so the tool
	// still reports the write as embedded-or-deferred without failing.
	if got := store.Embedding(out.Memory.ID); got != nil {
		t.Errorf("no provider should leave the memory unembedded, got %v", got)
	}
}

func TestCreateMemory_RejectsEmptyContent(t *testing.T) {
	srv := newTestServer(&mock.Store{}, &embmock.Provider{}, nil)
	if _, _, err := srv.createMemory(context.Background(), nil, createMemoryInput{}); err == nil {
		t.Fatal("want error for empty content")
	}
}

func TestUpdateMemory_Reembeds(t *testing.T) {
	store := &mock.Store{}
	emb := &embmock.Provider{EmbedResult: []float32{0, 1, 0, 0}}
	srv := newTestServer(store, emb, nil)
	ctx := context.Background()

	_, created, err := srv.createMemory(ctx, nil, createMemoryInput{Content: "draft"})
	if err != nil {
		t.Fatalf("create_memory: %v", err)
	}
	if _, _, err := srv.updateMemory(ctx, nil, updateMemoryInput{ID: created.Memory.ID, Content: "final"}); err != nil {
		t.Fatalf("update_memory: %v", err)
	}

	m, err := store.Get(ctx, "local", created.Memory.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m.Content != "final" {
		t.Errorf("content: got %q", m.Content)
	}
	if got := emb.CallCount(); got != 2 {
		t.Errorf("embed calls: want 2 (create + update), got %d", got)
	}
}

func TestGetMemory_NotFound(t *testing.T) {
	srv := newTestServer(&mock.Store{}, &embmock.Provider{}, nil)

	_, out, err := srv.getMemory(context.Background(), nil, getMemoryInput{ID: "nope"})
	if err != nil {
		t.Fatalf("get_memory: %v", err)
	}
	if out.Found || out.Memory != nil {
		t.Errorf("want not-found result, got %+v", out)
	}
}

func TestListMemories_FiltersAndSigns(t *testing.T) {
	store := &mock.Store{}
	ctx := context.Background()
	m, err := store.Create(ctx, "local", "sourdough starter day three")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create(ctx, "local", "ran ten kilometers"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	store.AttachMedia(m.ID, journal.Media{ID: "photo-1", Type: "image", StoragePath: "media/photo-1.jpg"})

	srv := newTestServer(store, &embmock.Provider{}, nil)
	srv.deps.Signer = media.SignerFunc(func(_ context.Context, paths []string) (map[string]string, error) {
		urls := make(map[string]string, len(paths))
		for _, p := range paths {
			urls[p] = "https://cdn.test/" + p
		}
		return urls, nil
	})

	_, out, err := srv.listMemories(ctx, nil, listMemoriesInput{Query: "sourdough"})
	if err != nil {
		t.Fatalf("list_memories: %v", err)
	}
	if len(out.Memories) != 1 || out.Memories[0].ID != m.ID {
		t.Fatalf("filtered list: got %+v", out.Memories)
	}
	if len(out.Memories[0].Media) != 1 || !strings.HasPrefix(out.Memories[0].Media[0].URL, "https://cdn.test/") {
		t.Errorf("media should carry a signed URL, got %+v", out.Memories[0].Media)
	}
}

func TestDeleteMemory(t *testing.T) {
	store := &mock.Store{}
	ctx := context.Background()
	m, err := store.Create(ctx, "local", "to be removed")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	srv := newTestServer(store, &embmock.Provider{}, nil)

	if _, _, err := srv.deleteMemory(ctx, nil, deleteMemoryInput{ID: m.ID}); err != nil {
		t.Fatalf("delete_memory: %v", err)
	}
	got, err := store.Get(ctx, "local", m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("memory should be gone")
	}
}

func TestSearchMemories_NoProviderMessage(t *testing.T) {
	srv := newTestServer(&mock.Store{}, &embmock.Provider{}, ai.ErrNoProvider)

	_, out, err := srv.searchMemories(context.Background(), nil, searchMemoriesInput{Query: "anything"})
	if err != nil {
		t.Fatalf("search_memories: %v", err)
	}
	if len(out.Results) != 0 {
		t.Errorf("want no results, got %+v", out.Results)
	}
	if out.Message == "" {
		t.Error("missing provider should produce an explanatory message")
	}
}

func TestSearchMemories_ReturnsMatches(t *testing.T) {
	store := &mock.Store{}
	ctx := context.Background()
	m, err := store.Create(ctx, "local", "bread baking notes")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.SetEmbedding(ctx, "local", m.ID, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("SetEmbedding: %v", err)
	}

	emb := &embmock.Provider{EmbedResult: []float32{1, 0, 0, 0}}
	srv := newTestServer(store, emb, nil)

	_, out, err := srv.searchMemories(ctx, nil, searchMemoriesInput{Query: "baking"})
	if err != nil {
		t.Fatalf("search_memories: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].ID != m.ID {
		t.Fatalf("results: got %+v", out.Results)
	}
	if out.Results[0].Similarity < 0.99 {
		t.Errorf("similarity: got %v", out.Results[0].Similarity)
	}
	if out.Message != "" {
		t.Errorf("matches should not carry an availability message, got %q", out.Message)
	}
}

func TestBackfillEmbeddings_ReportsProgress(t *testing.T) {
	store := &mock.Store{}
	ctx := context.Background()
	for _, content := range []string{"one", "two", "three"} {
		if _, err := store.Create(ctx, "local", content); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	emb := &embmock.Provider{EmbedResult: []float32{1, 1, 0, 0}}
	srv := newTestServer(store, emb, nil)

	_, out, err := srv.backfillEmbeddings(ctx, nil, backfillInput{})
	if err != nil {
		t.Fatalf("backfill_embeddings: %v", err)
	}
	if out.Processed != 3 || out.Skipped != 0 || out.Remaining != 0 {
		t.Errorf("progress: got %+v", out)
	}
}

func TestApplyTags(t *testing.T) {
	store := &mock.Store{}
	ctx := context.Background()
	m, err := store.Create(ctx, "local", "entry")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	srv := newTestServer(store, &embmock.Provider{}, nil)

	_, out, err := srv.applyTags(ctx, nil, applyTagsInput{MemoryID: m.ID, Tags: []string{"Cooking", "notes"}})
	if err != nil {
		t.Fatalf("apply_tags: %v", err)
	}
	if len(out.Applied) != 2 || out.Applied[0] != "cooking" {
		t.Errorf("applied: got %v", out.Applied)
	}

	if _, _, err := srv.applyTags(ctx, nil, applyTagsInput{MemoryID: m.ID}); err == nil {
		t.Error("want error for empty tag list")
	}
}

func TestGetStats_IncludesEmbeddingCoverage(t *testing.T) {
	store := &mock.Store{}
	ctx := context.Background()
	a, err := store.Create(ctx, "local", "embedded entry")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create(ctx, "local", "pending entry"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.SetEmbedding(ctx, "local", a.ID, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("SetEmbedding: %v", err)
	}
	srv := newTestServer(store, &embmock.Provider{}, nil)

	_, out, err := srv.getStats(ctx, nil, getStatsInput{})
	if err != nil {
		t.Fatalf("get_stats: %v", err)
	}
	if out.TotalMemories != 2 || out.Embedded != 1 || out.Unembedded != 1 {
		t.Errorf("stats: got %+v", out)
	}
	if out.FirstMemory == "" {
		t.Error("first_memory should be set when memories exist")
	}
	if _, err := time.Parse(time.RFC3339, out.FirstMemory); err != nil {
		t.Errorf("first_memory should be RFC3339, got %q", out.FirstMemory)
	}
}

func TestGetCalendar_RejectsBadMonth(t *testing.T) {
	srv := newTestServer(&mock.Store{}, &embmock.Provider{}, nil)
	if _, _, err := srv.getCalendar(context.Background(), nil, getCalendarInput{Year: 2026, Month: 13}); err == nil {
		t.Fatal("want error for month 13")
	}
}
