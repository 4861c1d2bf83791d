// Package embedding maps text to vectors. The Embedder interface is the seam the
// thesis extractor and the ingestion coordinator depend on; Client talks to an
// HTTP embedding service.
package embedding

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Embedder returns one vector per input text, in input order. A nil, empty or
// non-finite vector marks a text the model could not embed; callers treat it as
// a skip. A returned error means the call itself failed.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// EmbedOne embeds a single text. The vector may be unusable; check with Usable.
func EmbedOne(ctx context.Context, embedder Embedder, text string) ([]float64, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	vectors, err := embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding response count mismatch: requested=1 returned=%d", len(vectors))
	}
	return vectors[0], nil
}

// Usable reports whether v can take part in similarity scoring.
func Usable(v []float64) bool {
	if len(v) == 0 {
		return false
	}
	for _, value := range v {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return false
		}
	}
	return true
}

// FormatVector renders values as a pgvector literal such as "[0.1,0.2]".
func FormatVector(values []float64) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("vector is empty")
	}

	var builder strings.Builder
	builder.Grow(len(values) * 8)
	builder.WriteByte('[')
	for i, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return "", fmt.Errorf("vector has non-finite value at index %d", i)
		}
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}

// ParseVector parses a pgvector text literal.
func ParseVector(literal string) ([]float64, error) {
	trimmed := strings.TrimSpace(literal)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return nil, fmt.Errorf("malformed vector literal %q", truncate(trimmed, 32))
	}
	body := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if body == "" {
		return nil, fmt.Errorf("vector literal is empty")
	}

	parts := strings.Split(body, ",")
	values := make([]float64, 0, len(parts))
	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		values = append(values, value)
	}
	return values, nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max] + "..."
}
