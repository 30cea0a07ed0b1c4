// Package resolver maps free-text company names to dataset ids by nearest
// neighbour search over name embeddings.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "investment-chat/internal/common/errors"
	"investment-chat/internal/common/logger"
	"investment-chat/internal/common/metrics"
	"investment-chat/internal/dataset"
	"investment-chat/internal/llm"
)

// ErrNotFound is returned when no name is close enough to the query.
var ErrNotFound = errors.New("ENTITY_NOT_FOUND")

type Options struct {
	// MinSimilarity rejects weaker best matches when > 0.
	MinSimilarity float64
	// WarnBelow logs low-confidence matches without rejecting them.
	WarnBelow float64
	Timeout   time.Duration
}

type Match struct {
	Name       string  `json:"name"`
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

type Resolver struct {
	store    *dataset.Store
	embedder llm.Embedder
	index    Index
	opts     Options
	logger   logger.Logger
	// exact maps each display name to the id of its first deal.
	exact map[string]string
}

// Build embeds every display name in store and loads them into index.
func Build(ctx context.Context, store *dataset.Store, embedder llm.Embedder, index Index, opts Options, log logger.Logger) (*Resolver, error) {
	r := &Resolver{
		store:    store,
		embedder: embedder,
		index:    index,
		opts:     opts,
		logger:   log.With(map[string]interface{}{"component": "resolver"}),
		exact:    make(map[string]string),
	}

	names := store.Names()
	for _, n := range names {
		if _, dup := r.exact[n.Name]; !dup {
			r.exact[n.Name] = n.ID
		}
	}
	if len(names) == 0 {
		r.logger.Warn("dataset has no names; every lookup will miss", nil)
		if err := index.Reset(ctx, 0); err != nil {
			return nil, fmt.Errorf("reset index: %w", err)
		}
		return r, nil
	}

	texts := make([]string, len(names))
	for i, n := range names {
		texts[i] = n.Name
	}

	started := time.Now()
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, apperrors.NewEmbeddingFailedError(err)
	}
	if len(vectors) != len(names) {
		return nil, apperrors.NewEmbeddingFailedError(
			fmt.Errorf("embedder returned %d vectors for %d names", len(vectors), len(names)))
	}

	if err := index.Reset(ctx, len(vectors[0])); err != nil {
		return nil, fmt.Errorf("reset index: %w", err)
	}
	entries := make([]Entry, len(names))
	for i, n := range names {
		entries[i] = Entry{Name: n.Name, ID: n.ID, Vector: vectors[i]}
	}
	if err := index.Add(ctx, entries); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	r.logger.Info("name index built", map[string]interface{}{
		"names":    len(entries),
		"embedder": embedder.Name(),
		"duration": time.Since(started).String(),
	})
	return r, nil
}

// Resolve returns the single nearest display name to name. A query equal to
// a display name resolves to that deal without consulting the embedder.
func (r *Resolver) Resolve(ctx context.Context, name string) (Match, error) {
	if r.index.Len() == 0 {
		return Match{}, ErrNotFound
	}
	if id, ok := r.exact[name]; ok {
		if _, found := r.store.GetByID(id); found {
			metrics.ResolverSimilarity.Observe(1)
			r.logger.Debug("name resolved exactly", map[string]interface{}{"query": name, "id": id})
			return Match{Name: name, ID: id, Similarity: 1}, nil
		}
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	vec, err := r.embedder.Embed(ctx, name)
	if err != nil {
		return Match{}, apperrors.NewEmbeddingFailedError(err)
	}

	hit, ok, err := r.index.Nearest(ctx, vec)
	if err != nil {
		return Match{}, fmt.Errorf("nearest name: %w", err)
	}
	if !ok {
		return Match{}, ErrNotFound
	}
	metrics.ResolverSimilarity.Observe(hit.Similarity)

	fields := map[string]interface{}{
		"query":      name,
		"match":      hit.Name,
		"similarity": hit.Similarity,
	}
	if r.opts.MinSimilarity > 0 && hit.Similarity < r.opts.MinSimilarity {
		r.logger.Info("best match below minimum similarity", fields)
		return Match{}, ErrNotFound
	}
	if hit.Similarity < r.opts.WarnBelow {
		r.logger.Warn("low-confidence name match", fields)
	} else {
		r.logger.Debug("name resolved", fields)
	}

	if _, found := r.store.GetByID(hit.ID); !found {
		return Match{}, fmt.Errorf("index returned id %q missing from dataset", hit.ID)
	}
	return Match{Name: hit.Name, ID: hit.ID, Similarity: hit.Similarity}, nil
}

// Len reports the number of indexed names.
func (r *Resolver) Len() int {
	return r.index.Len()
}
