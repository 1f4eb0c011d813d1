// Package tagging suggests tags for journal memories via the owner's chat
// provider.
//
// Discovery samples recent entries, sends their content together with the
// owner's existing tag vocabulary to the model, and asks for a structured
// JSON answer: a few tag suggestions per entry plus ideas for new vocabulary.
// The JSON contract is strict. A response that does not parse is a hard
// error, because silently returning zero suggestions would mask a prompt
// regression.
package tagging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mnemo-app/mnemo/internal/ai"
	"github.com/mnemo-app/mnemo/internal/observe"
	"github.com/mnemo-app/mnemo/pkg/journal"
	"github.com/mnemo-app/mnemo/pkg/provider/chat"
)

// ErrBadModelOutput reports a chat response that violates the JSON contract.
var ErrBadModelOutput = errors.New("tagging: model output does not match the expected schema")

// Mode selects which memories are offered to the model.
type Mode string

const (
	// ModeUntagged samples only memories that have no tags yet.
	ModeUntagged Mode = "untagged"

	// ModeAll samples recent memories regardless of tagging state.
	ModeAll Mode = "all"
)

// Defaults for sampling and prompting.
const (
	DefaultSampleSize = 30

	// contentLimit truncates each memory's content in the prompt.
	contentLimit = 300

	// previewLimit truncates the content preview echoed in suggestions.
	previewLimit = 150

	// discoveryTemperature keeps suggestions focused rather than creative.
	discoveryTemperature = 0.3

	maxTagsPerMemory = 3
	maxNewTagIdeas   = 5
)

// Resolver yields per-owner AI providers. Implemented by [ai.Resolver].
type Resolver interface {
	Resolve(ctx context.Context, ownerID string) (*ai.Providers, error)
}

// Suggestion is the model's tag proposal for one memory.
type Suggestion struct {
	MemoryID string

	// Preview is the start of the memory's content, for display alongside
	// the proposal.
	Preview string

	// Tags holds one to three proposed tag names.
	Tags []string
}

// Report is the outcome of one discovery run.
type Report struct {
	Suggestions []Suggestion

	// NewTagIdeas are up to five vocabulary additions the model proposes
	// beyond the owner's existing tags.
	NewTagIdeas []string
}

// Discovery runs tag discovery. Create with [New]; safe for concurrent use.
type Discovery struct {
	resolver   Resolver
	store      journal.Store
	tags       journal.TagStore
	sampleSize int
	log        *slog.Logger
	metrics    *observe.Metrics
}

// Option configures a [Discovery].
type Option func(*Discovery)

// WithSampleSize overrides how many recent memories one run samples.
// Non-positive values keep the default.
func WithSampleSize(n int) Option {
	return func(d *Discovery) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(d *Discovery) { d.log = log }
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Discovery) { d.metrics = m }
}

// New creates a Discovery over the given resolver and stores.
func New(resolver Resolver, store journal.Store, tags journal.TagStore, opts ...Option) *Discovery {
	d := &Discovery{
		resolver:   resolver,
		store:      store,
		tags:       tags,
		sampleSize: DefaultSampleSize,
		log:        slog.Default(),
		metrics:    observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// modelReply is the JSON shape the model is instructed to produce.
type modelReply struct {
	Suggestions []struct {
		MemoryID string   `json:"memory_id"`
		Tags     []string `json:"tags"`
	} `json:"suggestions"`
	NewTagIdeas []string `json:"new_tag_ideas"`
}

// Discover samples the owner's recent memories and asks the chat provider
// for tag suggestions. Owners without a provider, and owners with no
// candidate memories, get an empty report without error.
func (d *Discovery) Discover(ctx context.Context, ownerID string, mode Mode) (*Report, error) {
	providers, err := d.resolver.Resolve(ctx, ownerID)
	if errors.Is(err, ai.ErrNoProvider) {
		return &Report{Suggestions: []Suggestion{}, NewTagIdeas: []string{}}, nil
	}
	if err != nil {
		return nil, err
	}

	candidates, err := d.candidates(ctx, ownerID, mode)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Report{Suggestions: []Suggestion{}, NewTagIdeas: []string{}}, nil
	}

	vocabulary, err := d.tags.ListTags(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("tagging: list vocabulary: %w", err)
	}

	start := time.Now()
	raw, err := providers.Chat.Complete(ctx, chat.CompletionRequest{
		Messages: []chat.Message{
			{Role: chat.RoleSystem, Content: systemPrompt},
			{Role: chat.RoleUser, Content: buildPrompt(candidates, vocabulary)},
		},
		Temperature: discoveryTemperature,
		JSONObject:  true,
	})
	d.metrics.ChatDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		d.metrics.RecordProviderError(ctx, providers.Chat.ModelID(), "chat")
		return nil, fmt.Errorf("tagging: chat completion: %w", err)
	}
	d.metrics.RecordProviderRequest(ctx, providers.Chat.ModelID(), "chat", "ok")

	report, err := parseReply(raw, candidates)
	if err != nil {
		return nil, err
	}
	d.log.Debug("tag discovery complete", "owner", ownerID,
		"candidates", len(candidates), "suggestions", len(report.Suggestions))
	return report, nil
}

// Apply links the given tag names to a memory, creating missing tags in the
// owner's vocabulary. Returns the tags as stored (trimmed, lowercased).
func (d *Discovery) Apply(ctx context.Context, ownerID, memoryID string, names []string) ([]journal.Tag, error) {
	applied := make([]journal.Tag, 0, len(names))
	for _, name := range names {
		tag, err := d.tags.EnsureTag(ctx, ownerID, name)
		if err != nil {
			return nil, fmt.Errorf("tagging: ensure %q: %w", name, err)
		}
		if err := d.tags.LinkTag(ctx, ownerID, memoryID, tag.ID); err != nil {
			return nil, fmt.Errorf("tagging: link %q: %w", name, err)
		}
		applied = append(applied, *tag)
	}
	return applied, nil
}

// candidates returns up to sampleSize recent memories, restricted to
// untagged ones when mode is [ModeUntagged].
func (d *Discovery) candidates(ctx context.Context, ownerID string, mode Mode) ([]journal.Memory, error) {
	recent, err := d.store.List(ctx, ownerID, journal.ListOpts{Limit: d.sampleSize})
	if err != nil {
		return nil, fmt.Errorf("tagging: list memories: %w", err)
	}
	if mode != ModeUntagged {
		return recent, nil
	}

	tagged, err := d.tags.TaggedMemoryIDs(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("tagging: tagged ids: %w", err)
	}
	untagged := recent[:0]
	for _, m := range recent {
		if !tagged[m.ID] {
			untagged = append(untagged, m)
		}
	}
	return untagged, nil
}

const systemPrompt = `You suggest tags for personal journal entries. Reply with a single JSON object of the form
{"suggestions": [{"memory_id": "<id>", "tags": ["<tag>", ...]}], "new_tag_ideas": ["<tag>", ...]}
Propose 1-3 short lowercase tags per entry, preferring the user's existing vocabulary. Add up to 5 new_tag_ideas for recurring themes the vocabulary misses. Do not include any text outside the JSON object.`

func buildPrompt(candidates []journal.Memory, vocabulary []journal.TagCount) string {
	var b strings.Builder
	b.WriteString("Existing tags: ")
	if len(vocabulary) == 0 {
		b.WriteString("(none)")
	} else {
		for i, tc := range vocabulary {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(tc.Name)
		}
	}
	b.WriteString("\n\nJournal entries:\n")
	for _, m := range candidates {
		fmt.Fprintf(&b, "[%s] %s\n", m.ID, truncate(m.Content, contentLimit))
	}
	return b.String()
}

// parseReply validates the model's JSON against the contract. Suggestions
// for IDs outside the candidate set are discarded; structural violations are
// [ErrBadModelOutput].
func parseReply(raw string, candidates []journal.Memory) (*Report, error) {
	byID := make(map[string]string, len(candidates))
	for _, m := range candidates {
		byID[m.ID] = m.Content
	}

	var reply modelReply
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadModelOutput, err)
	}
	if reply.Suggestions == nil {
		return nil, fmt.Errorf("%w: missing suggestions field", ErrBadModelOutput)
	}

	report := &Report{Suggestions: []Suggestion{}, NewTagIdeas: []string{}}
	for _, s := range reply.Suggestions {
		if s.MemoryID == "" || len(s.Tags) == 0 {
			return nil, fmt.Errorf("%w: suggestion missing memory_id or tags", ErrBadModelOutput)
		}
		content, ok := byID[s.MemoryID]
		if !ok {
			continue
		}
		tags := s.Tags
		if len(tags) > maxTagsPerMemory {
			tags = tags[:maxTagsPerMemory]
		}
		report.Suggestions = append(report.Suggestions, Suggestion{
			MemoryID: s.MemoryID,
			Preview:  truncate(content, previewLimit),
			Tags:     tags,
		})
	}
	ideas := reply.NewTagIdeas
	if len(ideas) > maxNewTagIdeas {
		ideas = ideas[:maxNewTagIdeas]
	}
	report.NewTagIdeas = append(report.NewTagIdeas, ideas...)
	return report, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
