package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"investment-chat/internal/common/logger"
	"investment-chat/internal/llm"

	"github.com/redis/go-redis/v9"
)

const embeddingKeyPrefix = "ai:embedding:"

// CachedEmbedder memoizes embeddings in redis. Cache failures are logged and
// fall through to the wrapped embedder.
type CachedEmbedder struct {
	next   llm.Embedder
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedEmbedder(next llm.Embedder, client redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "embedding-cache"}),
	}
}

func (c *CachedEmbedder) Name() string {
	return c.next.Name()
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		var vec []float32
		if err := json.Unmarshal([]byte(cached), &vec); err == nil {
			return vec, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("embedding cache read failed", map[string]interface{}{"error": err.Error()})
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	var missing []int
	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("embedding cache batch read failed", map[string]interface{}{"error": err.Error()})
		values = make([]interface{}, len(texts))
	}
	for i, v := range values {
		s, ok := v.(string)
		if ok {
			var vec []float32
			if json.Unmarshal([]byte(s), &vec) == nil {
				out[i] = vec
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}
	fresh, err := c.next.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(pending) {
		return nil, fmt.Errorf("%s returned %d vectors for %d texts", c.next.Name(), len(fresh), len(pending))
	}
	for j, i := range missing {
		out[i] = fresh[j]
		c.store(ctx, keys[i], fresh[j])
	}
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return embeddingKeyPrefix + c.next.Name() + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
