package resolver

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashingEmbedder maps text to character trigram and word feature vectors
// with the hashing trick. It needs no network and is deterministic, so it
// backs offline runs and tests.
type HashingEmbedder struct {
	dims int
}

func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashingEmbedder{dims: dims}
}

func (h *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *HashingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashingEmbedder) Name() string {
	return fmt.Sprintf("hashing:%d", h.dims)
}

func (h *HashingEmbedder) vector(text string) []float32 {
	vec := make([]float32, h.dims)
	normalized := normalize(text)
	if normalized == "" {
		return vec
	}

	padded := []rune(" " + normalized + " ")
	for i := 0; i+3 <= len(padded); i++ {
		h.add(vec, string(padded[i:i+3]), 1)
	}
	for _, word := range strings.Fields(normalized) {
		h.add(vec, "w:"+word, 2)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

func (h *HashingEmbedder) add(vec []float32, feature string, weight float32) {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum32()
	idx := int(sum % uint32(h.dims))
	if sum&0x80000000 != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// normalize lowercases and collapses everything but letters and digits to single spaces.
func normalize(text string) string {
	var sb strings.Builder
	space := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			space = false
			continue
		}
		if !space && sb.Len() > 0 {
			sb.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(sb.String())
}
