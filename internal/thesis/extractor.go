// Package thesis picks the most representative sentences of an article.
package thesis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"horse.fit/culldron/internal/cluster"
	"horse.fit/culldron/internal/embedding"
)

// DefaultTopN is the number of sentences kept per article.
const DefaultTopN = 2

// Separator joins thesis sentences into the stored thesis text.
const Separator = "; "

type Extractor struct {
	embedder  embedding.Embedder
	tokenizer *sentences.DefaultSentenceTokenizer
}

func NewExtractor(embedder embedding.Embedder) (*Extractor, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence tokenizer: %w", err)
	}
	return &Extractor{embedder: embedder, tokenizer: tokenizer}, nil
}

// Split returns the non-blank sentences of text in order.
func (e *Extractor) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	tokens := e.tokenizer.Tokenize(text)
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		sentence := strings.Join(strings.Fields(token.Text), " ")
		if sentence == "" {
			continue
		}
		out = append(out, sentence)
	}
	return out
}

// Extract returns up to topN sentences of content, most central first. When the
// content has no more than topN sentences they are returned in original order
// and nothing is embedded. An empty result means the content has no thesis.
func (e *Extractor) Extract(ctx context.Context, content string, topN int) ([]string, error) {
	if topN < 1 {
		return nil, fmt.Errorf("topN must be >= 1, got %d", topN)
	}

	all := e.Split(content)
	if len(all) <= topN {
		return all, nil
	}

	vectors, err := e.embedder.Embed(ctx, all)
	if err != nil {
		return nil, fmt.Errorf("embed sentences: %w", err)
	}
	if len(vectors) != len(all) {
		return nil, fmt.Errorf("embedding response count mismatch: requested=%d returned=%d", len(all), len(vectors))
	}

	picked := Rank(vectors, topN)
	out := make([]string, 0, len(picked))
	for _, idx := range picked {
		out = append(out, all[idx])
	}
	return out, nil
}

// Join renders thesis sentences as stored thesis text.
func Join(sentences []string) string {
	return strings.Join(sentences, Separator)
}

// Rank scores each vector by the sum of its cosine similarities to all vectors,
// itself included, and returns the indexes of the topN highest scores. Equal
// scores keep input order. Unusable vectors score 0.
func Rank(vectors [][]float64, topN int) []int {
	if topN < 1 || len(vectors) == 0 {
		return nil
	}

	usable := make([]bool, len(vectors))
	for i, v := range vectors {
		usable[i] = embedding.Usable(v)
	}

	scores := make([]float64, len(vectors))
	for i := range vectors {
		if !usable[i] {
			continue
		}
		for j := i; j < len(vectors); j++ {
			if !usable[j] {
				continue
			}
			sim := cluster.Cosine(vectors[i], vectors[j])
			scores[i] += sim
			if j != i {
				scores[j] += sim
			}
		}
	}

	order := make([]int, len(vectors))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if topN > len(order) {
		topN = len(order)
	}
	return order[:topN]
}
