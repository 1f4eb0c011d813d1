// Package mock provides a functional in-memory implementation of the journal
// storage contracts for tests. All operations behave like the PostgreSQL
// implementation (owner scoping, hydration semantics, oldest-first backfill
// order) minus persistence; Err fields inject failures per method.
package mock

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mnemo-app/mnemo/pkg/journal"
)

// Compile-time interface checks.
var (
	_ journal.Store         = (*Store)(nil)
	_ journal.TagStore      = (*Store)(nil)
	_ journal.SettingsStore = (*Store)(nil)
	_ journal.StatsStore    = (*Store)(nil)
)

type memoryRecord struct {
	journal.Memory
	seq int
}

type tagRecord struct {
	journal.Tag
	ownerID string
}

// Store is the in-memory test double. The zero value is ready to use; all
// methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	seq      int
	memories map[string]*memoryRecord
	tags     map[string]*tagRecord       // tag id -> record
	links    map[string]map[string]bool  // memory id -> tag id set
	media    map[string][]journal.Media  // memory id -> attachments
	settings map[string]journal.ProviderSettings

	// Error injection, one field per method. When set, the method returns the
	// error without touching state.
	CreateErr          error
	GetErr             error
	GetByIDsErr        error
	ListErr            error
	UpdateContentErr   error
	DeleteErr          error
	SetEmbeddingErr    error
	ClearEmbeddingsErr error
	ListUnembeddedErr  error
	CountErr           error
	MatchErr           error
	TagErr             error
	SettingsErr        error

	// Call counters for asserting batching behaviour.
	GetByIDsCalls int
	MatchCalls    int
}

func (s *Store) init() {
	if s.memories == nil {
		s.memories = make(map[string]*memoryRecord)
		s.tags = make(map[string]*tagRecord)
		s.links = make(map[string]map[string]bool)
		s.media = make(map[string][]journal.Media)
		s.settings = make(map[string]journal.ProviderSettings)
	}
}

// Create implements [journal.Store].
func (s *Store) Create(_ context.Context, ownerID, content string) (*journal.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	s.init()

	s.seq++
	rec := &memoryRecord{
		Memory: journal.Memory{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			Content:   content,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		seq: s.seq,
	}
	s.memories[rec.ID] = rec

	out := rec.Memory
	out.Tags = []journal.Tag{}
	out.Media = []journal.Media{}
	return &out, nil
}

// Get implements [journal.Store].
func (s *Store) Get(_ context.Context, ownerID, id string) (*journal.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	s.init()

	rec, ok := s.memories[id]
	if !ok || rec.OwnerID != ownerID {
		return nil, nil
	}
	m := s.hydrateLocked(rec)
	return &m, nil
}

// GetByIDs implements [journal.Store].
func (s *Store) GetByIDs(_ context.Context, ownerID string, ids []string) ([]journal.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetByIDsCalls++
	if s.GetByIDsErr != nil {
		return nil, s.GetByIDsErr
	}
	s.init()

	out := []journal.Memory{}
	for _, id := range ids {
		if rec, ok := s.memories[id]; ok && rec.OwnerID == ownerID {
			out = append(out, s.hydrateLocked(rec))
		}
	}
	return out, nil
}

// List implements [journal.Store].
func (s *Store) List(_ context.Context, ownerID string, opts journal.ListOpts) ([]journal.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.init()

	recs := s.ownedLocked(ownerID)
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	out := []journal.Memory{}
	for _, rec := range recs {
		if opts.Query != "" && !strings.Contains(strings.ToLower(rec.Content), strings.ToLower(opts.Query)) {
			continue
		}
		if opts.Tag != "" && !s.hasTagLocked(rec.ID, ownerID, opts.Tag) {
			continue
		}
		out = append(out, s.hydrateLocked(rec))
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// UpdateContent implements [journal.Store].
func (s *Store) UpdateContent(_ context.Context, ownerID, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateContentErr != nil {
		return s.UpdateContentErr
	}
	s.init()

	rec, ok := s.memories[id]
	if !ok || rec.OwnerID != ownerID {
		return fmt.Errorf("mock: update content: memory %s not found", id)
	}
	rec.Content = content
	rec.Embedding = nil
	rec.UpdatedAt = time.Now()
	return nil
}

// Delete implements [journal.Store].
func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.init()

	if rec, ok := s.memories[id]; ok && rec.OwnerID == ownerID {
		delete(s.memories, id)
		delete(s.links, id)
		delete(s.media, id)
	}
	return nil
}

// SetEmbedding implements [journal.Store].
func (s *Store) SetEmbedding(_ context.Context, ownerID, id string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetEmbeddingErr != nil {
		return s.SetEmbeddingErr
	}
	s.init()

	rec, ok := s.memories[id]
	if !ok || rec.OwnerID != ownerID {
		return fmt.Errorf("mock: set embedding: memory %s not found", id)
	}
	rec.Embedding = append([]float32(nil), embedding...)
	return nil
}

// ClearEmbeddings implements [journal.Store].
func (s *Store) ClearEmbeddings(_ context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ClearEmbeddingsErr != nil {
		return 0, s.ClearEmbeddingsErr
	}
	s.init()

	var n int64
	for _, rec := range s.memories {
		if rec.OwnerID == ownerID && rec.Embedding != nil {
			rec.Embedding = nil
			n++
		}
	}
	return n, nil
}

// ListUnembedded implements [journal.Store].
func (s *Store) ListUnembedded(_ context.Context, ownerID string, limit int) ([]journal.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListUnembeddedErr != nil {
		return nil, s.ListUnembeddedErr
	}
	s.init()

	recs := s.ownedLocked(ownerID)
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	out := []journal.Memory{}
	for _, rec := range recs {
		if rec.Embedding != nil {
			continue
		}
		out = append(out, rec.Memory)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// CountUnembedded implements [journal.Store].
func (s *Store) CountUnembedded(_ context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CountErr != nil {
		return 0, s.CountErr
	}
	s.init()

	n := 0
	for _, rec := range s.memories {
		if rec.OwnerID == ownerID && rec.Embedding == nil {
			n++
		}
	}
	return n, nil
}

// CountMemories implements [journal.Store].
func (s *Store) CountMemories(_ context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CountErr != nil {
		return 0, s.CountErr
	}
	s.init()

	n := 0
	for _, rec := range s.memories {
		if rec.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// Match implements [journal.Store] with true cosine similarity.
func (s *Store) Match(_ context.Context, ownerID string, embedding []float32, minSimilarity float64, limit int) ([]journal.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MatchCalls++
	if s.MatchErr != nil {
		return nil, s.MatchErr
	}
	s.init()

	matches := []journal.Match{}
	for _, rec := range s.memories {
		if rec.OwnerID != ownerID || rec.Embedding == nil {
			continue
		}
		sim := cosine(embedding, rec.Embedding)
		if sim >= minSimilarity {
			matches = append(matches, journal.Match{ID: rec.ID, Similarity: sim})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// ListTags implements [journal.TagStore].
func (s *Store) ListTags(_ context.Context, ownerID string) ([]journal.TagCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TagErr != nil {
		return nil, s.TagErr
	}
	s.init()

	out := []journal.TagCount{}
	for _, tag := range s.tags {
		if tag.ownerID != ownerID {
			continue
		}
		count := 0
		for memoryID, tagIDs := range s.links {
			rec, ok := s.memories[memoryID]
			if ok && rec.OwnerID == ownerID && tagIDs[tag.ID] {
				count++
			}
		}
		out = append(out, journal.TagCount{Tag: tag.Tag, Memories: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// EnsureTag implements [journal.TagStore].
func (s *Store) EnsureTag(_ context.Context, ownerID, name string) (*journal.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TagErr != nil {
		return nil, s.TagErr
	}
	s.init()

	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("mock: ensure tag: empty name")
	}
	for _, tag := range s.tags {
		if tag.ownerID == ownerID && tag.Name == name {
			t := tag.Tag
			return &t, nil
		}
	}
	tag := &tagRecord{Tag: journal.Tag{ID: uuid.NewString(), Name: name}, ownerID: ownerID}
	s.tags[tag.ID] = tag
	t := tag.Tag
	return &t, nil
}

// LinkTag implements [journal.TagStore].
func (s *Store) LinkTag(_ context.Context, ownerID, memoryID, tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TagErr != nil {
		return s.TagErr
	}
	s.init()

	rec, ok := s.memories[memoryID]
	if !ok || rec.OwnerID != ownerID {
		return fmt.Errorf("mock: link tag: memory %s not found", memoryID)
	}
	if s.links[memoryID] == nil {
		s.links[memoryID] = make(map[string]bool)
	}
	s.links[memoryID][tagID] = true
	return nil
}

// TaggedMemoryIDs implements [journal.TagStore].
func (s *Store) TaggedMemoryIDs(_ context.Context, ownerID string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TagErr != nil {
		return nil, s.TagErr
	}
	s.init()

	tagged := make(map[string]bool)
	for memoryID, tagIDs := range s.links {
		rec, ok := s.memories[memoryID]
		if ok && rec.OwnerID == ownerID && len(tagIDs) > 0 {
			tagged[memoryID] = true
		}
	}
	return tagged, nil
}

// Settings implements [journal.SettingsStore].
func (s *Store) Settings(_ context.Context, ownerID string) (*journal.ProviderSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SettingsErr != nil {
		return nil, s.SettingsErr
	}
	s.init()

	ps, ok := s.settings[ownerID]
	if !ok {
		return nil, nil
	}
	return &ps, nil
}

// SaveSettings implements [journal.SettingsStore].
func (s *Store) SaveSettings(_ context.Context, settings journal.ProviderSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SettingsErr != nil {
		return s.SettingsErr
	}
	s.init()

	settings.UpdatedAt = time.Now()
	s.settings[settings.OwnerID] = settings
	return nil
}

// Stats implements [journal.StatsStore].
func (s *Store) Stats(ctx context.Context, ownerID string) (*journal.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	st := journal.Stats{TopTags: []journal.TagCount{}}
	for _, rec := range s.memories {
		if rec.OwnerID != ownerID {
			continue
		}
		st.TotalMemories++
		if len(s.links[rec.ID]) > 0 {
			st.TaggedMemories++
		}
		if st.FirstMemory.IsZero() || rec.CreatedAt.Before(st.FirstMemory) {
			st.FirstMemory = rec.CreatedAt
		}
		if rec.CreatedAt.After(st.LastMemory) {
			st.LastMemory = rec.CreatedAt
		}
	}
	return &st, nil
}

// Calendar implements [journal.StatsStore].
func (s *Store) Calendar(_ context.Context, ownerID string, year int, month time.Month) ([]journal.CalendarDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	byDay := make(map[int]int)
	for _, rec := range s.memories {
		if rec.OwnerID != ownerID {
			continue
		}
		t := rec.CreatedAt.UTC()
		if t.Year() == year && t.Month() == month {
			byDay[t.Day()]++
		}
	}
	days := []journal.CalendarDay{}
	for day, count := range byDay {
		days = append(days, journal.CalendarDay{Day: day, Count: count})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days, nil
}

// AttachMedia adds a media row to a memory, for tests exercising hydration
// and URL signing.
func (s *Store) AttachMedia(memoryID string, media journal.Media) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.media[memoryID] = append(s.media[memoryID], media)
}

// Embedding returns the stored embedding for a memory, or nil.
func (s *Store) Embedding(id string) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	if rec, ok := s.memories[id]; ok {
		return rec.Embedding
	}
	return nil
}

func (s *Store) ownedLocked(ownerID string) []*memoryRecord {
	recs := []*memoryRecord{}
	for _, rec := range s.memories {
		if rec.OwnerID == ownerID {
			recs = append(recs, rec)
		}
	}
	return recs
}

func (s *Store) hasTagLocked(memoryID, ownerID, name string) bool {
	for tagID := range s.links[memoryID] {
		tag, ok := s.tags[tagID]
		if ok && tag.ownerID == ownerID && tag.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) hydrateLocked(rec *memoryRecord) journal.Memory {
	m := rec.Memory
	m.Tags = []journal.Tag{}
	m.Media = []journal.Media{}
	for tagID := range s.links[rec.ID] {
		if tag, ok := s.tags[tagID]; ok {
			m.Tags = append(m.Tags, tag.Tag)
		}
	}
	sort.Slice(m.Tags, func(i, j int) bool { return m.Tags[i].Name < m.Tags[j].Name })
	m.Media = append(m.Media, s.media[rec.ID]...)
	return m
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
