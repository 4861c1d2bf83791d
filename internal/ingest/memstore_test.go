package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"horse.fit/culldron/internal/cluster"
)

// memoryStore is an in-memory Store. Inserts are staged per transaction and
// become visible to ThemeEntriesSince on commit. A record's Seq is its
// position plus one.
type memoryStore struct {
	mu        sync.Mutex
	records   []Record
	scanned   int
	conflicts map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{conflicts: map[string]bool{}}
}

func (m *memoryStore) ThemeEntriesSince(_ context.Context, afterSeq int64) ([]cluster.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []cluster.Entry
	for i, record := range m.records {
		seq := int64(i + 1)
		if seq <= afterSeq {
			continue
		}
		m.scanned++
		out = append(out, cluster.Entry{Vector: record.Embedding, ThemeID: record.ThemeID, Seq: seq})
	}
	return out, nil
}

func (m *memoryStore) Begin(context.Context) (Tx, error) {
	return &memoryTx{store: m}, nil
}

func (m *memoryStore) all() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

func (m *memoryStore) byURL(postURL string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.records {
		if record.PostURL == postURL {
			return record, true
		}
	}
	return Record{}, false
}

func (m *memoryStore) hasURL(postURL string) bool {
	_, ok := m.byURL(postURL)
	return ok
}

type memoryTx struct {
	store   *memoryStore
	pending []Record
	done    bool
}

func (t *memoryTx) ExistsByURL(_ context.Context, postURL string) (bool, error) {
	for _, record := range t.pending {
		if record.PostURL == postURL {
			return true, nil
		}
	}
	return t.store.hasURL(postURL), nil
}

func (t *memoryTx) Insert(ctx context.Context, record Record) (bool, error) {
	if t.done {
		return false, errors.New("transaction finished")
	}
	t.store.mu.Lock()
	conflict := t.store.conflicts[record.PostURL]
	t.store.mu.Unlock()
	if conflict {
		return false, nil
	}
	exists, _ := t.ExistsByURL(ctx, record.PostURL)
	if exists {
		return false, nil
	}
	t.pending = append(t.pending, record)
	return true, nil
}

func (t *memoryTx) Commit(context.Context) error {
	if t.done {
		return errors.New("transaction finished")
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.records = append(t.store.records, t.pending...)
	return nil
}

func (t *memoryTx) Rollback(context.Context) error {
	t.done = true
	t.pending = nil
	return nil
}

// topicEmbedder counts topic keywords per text. Unknown texts get a vector on
// a dimension of their own so unrelated content never matches.
type topicEmbedder struct {
	topics [][]string
	// null lists substrings whose texts get a nil vector.
	null  []string
	err   error
	calls int
}

var defaultTopics = [][]string{
	{"ai", "artificial", "intelligence", "algorithm", "algorithms", "model", "models"},
	{"health", "healthcare", "hospital", "hospitals", "doctor", "doctors", "patient", "patients", "clinic", "clinics", "medical"},
	{"football", "team", "match", "stadium", "championship", "fans", "goal"},
}

func newTopicEmbedder() *topicEmbedder {
	return &topicEmbedder{topics: defaultTopics}
}

func (e *topicEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *topicEmbedder) vector(text string) []float64 {
	for _, marker := range e.null {
		if strings.Contains(text, marker) {
			return nil
		}
	}
	vector := make([]float64, len(e.topics)+1)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	hits := 0
	for _, word := range words {
		for dim, topic := range e.topics {
			for _, keyword := range topic {
				if word == keyword {
					vector[dim]++
					hits++
				}
			}
		}
	}
	if hits == 0 {
		vector[len(e.topics)] = 1
	}
	return vector
}

// vectorEmbedder returns fixed vectors by exact text.
type vectorEmbedder struct {
	vectors map[string][]float64
	failOn  string
	calls   []int
}

func (e *vectorEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	e.calls = append(e.calls, len(texts))
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if e.failOn != "" && text == e.failOn {
			return nil, fmt.Errorf("embedding service unavailable")
		}
		out[i] = e.vectors[text]
	}
	return out, nil
}

// fixedExtractor returns preset sentences per content.
type fixedExtractor struct {
	sentences map[string][]string
}

func (f fixedExtractor) Extract(_ context.Context, content string, _ int) ([]string, error) {
	return f.sentences[content], nil
}

type staticDetector string

func (d staticDetector) Detect(string) string {
	return string(d)
}

func sequentialIDs() cluster.IDFunc {
	return prefixedIDs("theme")
}

func prefixedIDs(prefix string) cluster.IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
