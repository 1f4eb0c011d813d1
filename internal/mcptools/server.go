// Package mcptools exposes the journal over the Model Context Protocol.
//
// The server speaks MCP over stdio and operates as a single configured owner;
// per-tool authentication is out of scope. Tools are thin adapters over the
// stores and engines, mapping their results to JSON payloads.
package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mnemo-app/mnemo/internal/ai"
	"github.com/mnemo-app/mnemo/internal/backfill"
	"github.com/mnemo-app/mnemo/internal/media"
	"github.com/mnemo-app/mnemo/internal/observe"
	"github.com/mnemo-app/mnemo/internal/search"
	"github.com/mnemo-app/mnemo/internal/tagging"
	"github.com/mnemo-app/mnemo/pkg/journal"
)

// Deps carries everything the tool server needs.
type Deps struct {
	// OwnerID is the journal owner all tools operate as.
	OwnerID string

	Store    journal.Store
	Tags     journal.TagStore
	Stats    journal.StatsStore
	Resolver search.Resolver
	Signer   media.Signer

	Searcher   *search.Engine
	Backfiller *backfill.Backfiller
	Discovery  *tagging.Discovery

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Server is the MCP stdio tool server. Create with [NewServer].
type Server struct {
	deps Deps
}

// NewServer creates a Server. Logger and Metrics fall back to the package
// defaults when nil; Signer falls back to [media.NoSigner].
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	if deps.Signer == nil {
		deps.Signer = media.NoSigner{}
	}
	return &Server{deps: deps}
}

// Run serves MCP over stdio until ctx is cancelled or the transport closes.
func (s *Server) Run(ctx context.Context, version string) error {
	return s.mcpServer(version).Run(ctx, &mcp.StdioTransport{})
}

// mcpServer builds the MCP server with all tools registered.
func (s *Server) mcpServer(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "mnemo", Version: version}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_memories",
		Description: "List journal memories, newest first. Optionally filter by a keyword query or a tag name.",
	}, s.listMemories)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_memory",
		Description: "Fetch a single memory by ID, with tags and media.",
	}, s.getMemory)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_memory",
		Description: "Create a new journal memory. The embedding is computed in the background when AI is configured.",
	}, s.createMemory)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_memory",
		Description: "Replace a memory's content. The embedding is recomputed when AI is configured.",
	}, s.updateMemory)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_memory",
		Description: "Delete a memory and its tag links and media.",
	}, s.deleteMemory)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_memories",
		Description: "Semantic search across memories. Requires a configured AI provider.",
	}, s.searchMemories)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "backfill_embeddings",
		Description: "Run one bounded round of embedding backfill and report progress.",
	}, s.backfillEmbeddings)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "discover_tags",
		Description: "Ask the AI provider for tag suggestions over recent memories.",
	}, s.discoverTags)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "apply_tags",
		Description: "Apply tag names to a memory, creating missing tags.",
	}, s.applyTags)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_tags",
		Description: "List the tag vocabulary with usage counts.",
	}, s.listTags)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_stats",
		Description: "Aggregate journal statistics, including embedding coverage.",
	}, s.getStats)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_calendar",
		Description: "Per-day memory counts for one month.",
	}, s.getCalendar)

	return srv
}

// --- payloads ---

type memoryPayload struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Tags      []string       `json:"tags"`
	Media     []mediaPayload `json:"media,omitempty"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

type mediaPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

func toPayload(m journal.Memory) memoryPayload {
	p := memoryPayload{
		ID:        m.ID,
		Content:   m.Content,
		Tags:      []string{},
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
		UpdatedAt: m.UpdatedAt.Format(time.RFC3339),
	}
	for _, t := range m.Tags {
		p.Tags = append(p.Tags, t.Name)
	}
	for _, md := range m.Media {
		p.Media = append(p.Media, mediaPayload{ID: md.ID, Type: md.Type, URL: md.URL})
	}
	return p
}

// signAll attaches signed media URLs to the memories in one batched call.
// Signing failures degrade to URL-less payloads.
func (s *Server) signAll(ctx context.Context, memories []journal.Memory) {
	paths := media.CollectPaths(memories)
	if len(paths) == 0 {
		return
	}
	urls, err := s.deps.Signer.SignURLs(ctx, paths)
	if err != nil {
		s.deps.Logger.Warn("media URL signing failed", "error", err)
		return
	}
	media.FillURLs(memories, urls)
}

// --- tool handlers ---

type listMemoriesInput struct {
	Query string `json:"query,omitempty" jsonschema:"keyword filter over memory content"`
	Tag   string `json:"tag,omitempty" jsonschema:"restrict to memories carrying this tag"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

type listMemoriesOutput struct {
	Memories []memoryPayload `json:"memories"`
}

func (s *Server) listMemories(ctx context.Context, _ *mcp.CallToolRequest, in listMemoriesInput) (*mcp.CallToolResult, listMemoriesOutput, error) {
	out := listMemoriesOutput{Memories: []memoryPayload{}}
	memories, err := s.deps.Store.List(ctx, s.deps.OwnerID, journal.ListOpts{
		Query: in.Query, Tag: in.Tag, Limit: in.Limit,
	})
	if err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "list_memories", "error")
		return nil, out, err
	}
	s.signAll(ctx, memories)
	for _, m := range memories {
		out.Memories = append(out.Memories, toPayload(m))
	}
	s.deps.Metrics.RecordToolCall(ctx, "list_memories", "ok")
	return nil, out, nil
}

type getMemoryInput struct {
	ID string `json:"id" jsonschema:"the memory ID"`
}

type getMemoryOutput struct {
	Memory *memoryPayload `json:"memory,omitempty"`
	Found  bool           `json:"found"`
}

func (s *Server) getMemory(ctx context.Context, _ *mcp.CallToolRequest, in getMemoryInput) (*mcp.CallToolResult, getMemoryOutput, error) {
	m, err := s.deps.Store.Get(ctx, s.deps.OwnerID, in.ID)
	if err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "get_memory", "error")
		return nil, getMemoryOutput{}, err
	}
	if m == nil {
		s.deps.Metrics.RecordToolCall(ctx, "get_memory", "not_found")
		return nil, getMemoryOutput{Found: false}, nil
	}
	memories := []journal.Memory{*m}
	s.signAll(ctx, memories)
	p := toPayload(memories[0])
	s.deps.Metrics.RecordToolCall(ctx, "get_memory", "ok")
	return nil, getMemoryOutput{Memory: &p, Found: true}, nil
}

type createMemoryInput struct {
	Content string `json:"content" jsonschema:"the journal entry text"`
}

type createMemoryOutput struct {
	Memory   memoryPayload `json:"memory"`
	Embedded bool          `json:"embedded"`
}

func (s *Server) createMemory(ctx context.Context, _ *mcp.CallToolRequest, in createMemoryInput) (*mcp.CallToolResult, createMemoryOutput, error) {
	if in.Content == "" {
		return nil, createMemoryOutput{}, fmt.Errorf("content must not be empty")
	}
	m, err := s.deps.Store.Create(ctx, s.deps.OwnerID, in.Content)
	if err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "create_memory", "error")
		return nil, createMemoryOutput{}, err
	}

	// Best-effort: the entry exists regardless of embedding success; a
	// failed embedding just leaves it for backfill.
	embedded := true
	if err := s.deps.Backfiller.EmbedOne(ctx, s.deps.OwnerID, m.ID, m.Content); err != nil {
		s.deps.Logger.Warn("embedding new memory failed, leaving for backfill",
			"memory", m.ID, "error", err)
		embedded = false
	}

	s.deps.Metrics.RecordToolCall(ctx, "create_memory", "ok")
	return nil, createMemoryOutput{Memory: toPayload(*m), Embedded: embedded}, nil
}

type updateMemoryInput struct {
	ID      string `json:"id" jsonschema:"the memory ID"`
	Content string `json:"content" jsonschema:"the replacement text"`
}

type updateMemoryOutput struct {
	Embedded bool `json:"embedded"`
}

func (s *Server) updateMemory(ctx context.Context, _ *mcp.CallToolRequest, in updateMemoryInput) (*mcp.CallToolResult, updateMemoryOutput, error) {
	if in.Content == "" {
		return nil, updateMemoryOutput{}, fmt.Errorf("content must not be empty")
	}
	if err := s.deps.Store.UpdateContent(ctx, s.deps.OwnerID, in.ID, in.Content); err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "update_memory", "error")
		return nil, updateMemoryOutput{}, err
	}

	embedded := true
	if err := s.deps.Backfiller.EmbedOne(ctx, s.deps.OwnerID, in.ID, in.Content); err != nil {
		s.deps.Logger.Warn("re-embedding memory failed, leaving for backfill",
			"memory", in.ID, "error", err)
		embedded = false
	}

	s.deps.Metrics.RecordToolCall(ctx, "update_memory", "ok")
	return nil, updateMemoryOutput{Embedded: embedded}, nil
}

type deleteMemoryInput struct {
	ID string `json:"id" jsonschema:"the memory ID"`
}

type deleteMemoryOutput struct {
	Deleted bool `json:"deleted"`
}

func (s *Server) deleteMemory(ctx context.Context, _ *mcp.CallToolRequest, in deleteMemoryInput) (*mcp.CallToolResult, deleteMemoryOutput, error) {
	if err := s.deps.Store.Delete(ctx, s.deps.OwnerID, in.ID); err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "delete_memory", "error")
		return nil, deleteMemoryOutput{}, err
	}
	s.deps.Metrics.RecordToolCall(ctx, "delete_memory", "ok")
	return nil, deleteMemoryOutput{Deleted: true}, nil
}

type searchMemoriesInput struct {
	Query string `json:"query" jsonschema:"natural-language search query"`
}

type searchResultPayload struct {
	memoryPayload
	Similarity float64 `json:"similarity"`
}

type searchMemoriesOutput struct {
	Results []searchResultPayload `json:"results"`

	// Message is set when AI search is unavailable, so callers can
	// distinguish "no provider" from "no matches".
	Message string `json:"message,omitempty"`
}

func (s *Server) searchMemories(ctx context.Context, _ *mcp.CallToolRequest, in searchMemoriesInput) (*mcp.CallToolResult, searchMemoriesOutput, error) {
	out := searchMemoriesOutput{Results: []searchResultPayload{}}

	if _, err := s.deps.Resolver.Resolve(ctx, s.deps.OwnerID); err != nil {
		if errors.Is(err, ai.ErrNoProvider) {
			s.deps.Metrics.RecordToolCall(ctx, "search_memories", "no_provider")
			out.Message = "AI search is not configured. Save provider settings to enable semantic search."
			return nil, out, nil
		}
		s.deps.Metrics.RecordToolCall(ctx, "search_memories", "error")
		return nil, out, err
	}

	results, err := s.deps.Searcher.Search(ctx, s.deps.OwnerID, in.Query)
	if err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "search_memories", "error")
		return nil, out, err
	}
	for _, r := range results {
		out.Results = append(out.Results, searchResultPayload{
			memoryPayload: toPayload(r.Memory),
			Similarity:    r.Similarity,
		})
	}
	s.deps.Metrics.RecordToolCall(ctx, "search_memories", "ok")
	return nil, out, nil
}

type backfillInput struct{}

type backfillOutput struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Remaining int `json:"remaining"`
}

func (s *Server) backfillEmbeddings(ctx context.Context, _ *mcp.CallToolRequest, _ backfillInput) (*mcp.CallToolResult, backfillOutput, error) {
	progress, err := s.deps.Backfiller.RunOnce(ctx, s.deps.OwnerID)
	if err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "backfill_embeddings", "error")
		return nil, backfillOutput{}, err
	}
	s.deps.Metrics.RecordToolCall(ctx, "backfill_embeddings", "ok")
	return nil, backfillOutput{
		Processed: progress.Processed,
		Skipped:   progress.Skipped,
		Remaining: progress.Remaining,
	}, nil
}

type discoverTagsInput struct {
	Mode string `json:"mode,omitempty" jsonschema:"untagged (default) or all"`
}

type tagSuggestionPayload struct {
	MemoryID string   `json:"memory_id"`
	Preview  string   `json:"preview"`
	Tags     []string `json:"tags"`
}

type discoverTagsOutput struct {
	Suggestions []tagSuggestionPayload `json:"suggestions"`
	NewTagIdeas []string               `json:"new_tag_ideas"`
}

func (s *Server) discoverTags(ctx context.Context, _ *mcp.CallToolRequest, in discoverTagsInput) (*mcp.CallToolResult, discoverTagsOutput, error) {
	mode := tagging.ModeUntagged
	if in.Mode == string(tagging.ModeAll) {
		mode = tagging.ModeAll
	}

	report, err := s.deps.Discovery.Discover(ctx, s.deps.OwnerID, mode)
	if err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "discover_tags", "error")
		return nil, discoverTagsOutput{}, err
	}

	out := discoverTagsOutput{Suggestions: []tagSuggestionPayload{}, NewTagIdeas: report.NewTagIdeas}
	for _, sug := range report.Suggestions {
		out.Suggestions = append(out.Suggestions, tagSuggestionPayload{
			MemoryID: sug.MemoryID, Preview: sug.Preview, Tags: sug.Tags,
		})
	}
	s.deps.Metrics.RecordToolCall(ctx, "discover_tags", "ok")
	return nil, out, nil
}

type applyTagsInput struct {
	MemoryID string   `json:"memory_id" jsonschema:"the memory to tag"`
	Tags     []string `json:"tags" jsonschema:"tag names to apply"`
}

type applyTagsOutput struct {
	Applied []string `json:"applied"`
}

func (s *Server) applyTags(ctx context.Context, _ *mcp.CallToolRequest, in applyTagsInput) (*mcp.CallToolResult, applyTagsOutput, error) {
	if len(in.Tags) == 0 {
		return nil, applyTagsOutput{}, fmt.Errorf("tags must not be empty")
	}
	applied, err := s.deps.Discovery.Apply(ctx, s.deps.OwnerID, in.MemoryID, in.Tags)
	if err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "apply_tags", "error")
		return nil, applyTagsOutput{}, err
	}
	out := applyTagsOutput{Applied: []string{}}
	for _, t := range applied {
		out.Applied = append(out.Applied, t.Name)
	}
	s.deps.Metrics.RecordToolCall(ctx, "apply_tags", "ok")
	return nil, out, nil
}

type listTagsInput struct{}

type tagCountPayload struct {
	Name     string `json:"name"`
	Memories int    `json:"memories"`
}

type listTagsOutput struct {
	Tags []tagCountPayload `json:"tags"`
}

func (s *Server) listTags(ctx context.Context, _ *mcp.CallToolRequest, _ listTagsInput) (*mcp.CallToolResult, listTagsOutput, error) {
	counts, err := s.deps.Tags.ListTags(ctx, s.deps.OwnerID)
	if err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "list_tags", "error")
		return nil, listTagsOutput{}, err
	}
	out := listTagsOutput{Tags: []tagCountPayload{}}
	for _, tc := range counts {
		out.Tags = append(out.Tags, tagCountPayload{Name: tc.Name, Memories: tc.Memories})
	}
	s.deps.Metrics.RecordToolCall(ctx, "list_tags", "ok")
	return nil, out, nil
}

type getStatsInput struct{}

type getStatsOutput struct {
	TotalMemories  int               `json:"total_memories"`
	TaggedMemories int               `json:"tagged_memories"`
	FirstMemory    string            `json:"first_memory,omitempty"`
	LastMemory     string            `json:"last_memory,omitempty"`
	TopTags        []tagCountPayload `json:"top_tags"`
	Embedded       int               `json:"embedded"`
	Unembedded     int               `json:"unembedded"`
}

func (s *Server) getStats(ctx context.Context, _ *mcp.CallToolRequest, _ getStatsInput) (*mcp.CallToolResult, getStatsOutput, error) {
	st, err := s.deps.Stats.Stats(ctx, s.deps.OwnerID)
	if err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "get_stats", "error")
		return nil, getStatsOutput{}, err
	}
	status, err := s.deps.Backfiller.Status(ctx, s.deps.OwnerID)
	if err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "get_stats", "error")
		return nil, getStatsOutput{}, err
	}

	out := getStatsOutput{
		TotalMemories:  st.TotalMemories,
		TaggedMemories: st.TaggedMemories,
		TopTags:        []tagCountPayload{},
		Embedded:       status.Embedded,
		Unembedded:     status.Unembedded,
	}
	if !st.FirstMemory.IsZero() {
		out.FirstMemory = st.FirstMemory.Format(time.RFC3339)
		out.LastMemory = st.LastMemory.Format(time.RFC3339)
	}
	for _, tc := range st.TopTags {
		out.TopTags = append(out.TopTags, tagCountPayload{Name: tc.Name, Memories: tc.Memories})
	}
	s.deps.Metrics.RecordToolCall(ctx, "get_stats", "ok")
	return nil, out, nil
}

type getCalendarInput struct {
	Year  int `json:"year" jsonschema:"calendar year, e.g. 2026"`
	Month int `json:"month" jsonschema:"month number 1-12"`
}

type calendarDayPayload struct {
	Day   int `json:"day"`
	Count int `json:"count"`
}

type getCalendarOutput struct {
	Days []calendarDayPayload `json:"days"`
}

func (s *Server) getCalendar(ctx context.Context, _ *mcp.CallToolRequest, in getCalendarInput) (*mcp.CallToolResult, getCalendarOutput, error) {
	if in.Month < 1 || in.Month > 12 {
		return nil, getCalendarOutput{}, fmt.Errorf("month %d is out of range [1, 12]", in.Month)
	}
	days, err := s.deps.Stats.Calendar(ctx, s.deps.OwnerID, in.Year, time.Month(in.Month))
	if err != nil {
		s.deps.Metrics.RecordToolCall(ctx, "get_calendar", "error")
		return nil, getCalendarOutput{}, err
	}
	out := getCalendarOutput{Days: []calendarDayPayload{}}
	for _, d := range days {
		out.Days = append(out.Days, calendarDayPayload{Day: d.Day, Count: d.Count})
	}
	s.deps.Metrics.RecordToolCall(ctx, "get_calendar", "ok")
	return nil, out, nil
}
