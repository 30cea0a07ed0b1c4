package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// tieCandidates is how many kNN hits are ranked by score then insertion order.
const tieCandidates = 10

// ElasticsearchIndex stores name vectors in a dense_vector field and answers
// nearest-name queries with a k=1 kNN search.
type ElasticsearchIndex struct {
	client *elasticsearch.Client
	name   string
	count  atomic.Int64
}

func NewElasticsearchIndex(client *elasticsearch.Client, name string) *ElasticsearchIndex {
	return &ElasticsearchIndex{client: client, name: name}
}

// Reset recreates the index so each startup indexes the current dataset only.
func (e *ElasticsearchIndex) Reset(ctx context.Context, dims int) error {
	del := esapi.IndicesDeleteRequest{Index: []string{e.name}}
	res, err := del.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("delete index %s: %w", e.name, err)
	}
	res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete index %s: %s", e.name, res.Status())
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"name": map[string]interface{}{"type": "keyword"},
				"id":   map[string]interface{}{"type": "keyword"},
				"ord":  map[string]interface{}{"type": "integer"},
				"vector": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
	body, _ := json.Marshal(mapping)
	create := esapi.IndicesCreateRequest{Index: e.name, Body: bytes.NewReader(body)}
	res, err = create.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", e.name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", e.name, res.String())
	}
	e.count.Store(0)
	return nil
}

func (e *ElasticsearchIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	base := e.count.Load()
	for i, entry := range entries {
		meta, _ := json.Marshal(map[string]interface{}{"index": map[string]interface{}{}})
		doc, err := json.Marshal(map[string]interface{}{
			"name":   entry.Name,
			"id":     entry.ID,
			"ord":    base + int64(i),
			"vector": entry.Vector,
		})
		if err != nil {
			return fmt.Errorf("encode entry %q: %w", entry.Name, err)
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{Index: e.name, Body: &buf, Refresh: "true"}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index: %s", res.String())
	}

	var out struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if out.Errors {
		return fmt.Errorf("bulk index: one or more documents were rejected")
	}
	e.count.Add(int64(len(entries)))
	return nil
}

func (e *ElasticsearchIndex) Nearest(ctx context.Context, vector []float32) (Hit, bool, error) {
	if e.count.Load() == 0 {
		return Hit{}, false, nil
	}

	// Equal scores go to the entry added first, matching MemoryIndex.
	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              tieCandidates,
			"num_candidates": 100,
		},
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{"ord": "asc"},
		},
		"_source": []string{"name", "id"},
		"size":    1,
	}
	body, _ := json.Marshal(query)
	req := esapi.SearchRequest{
		Index: []string{e.name},
		Body:  strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return Hit{}, false, fmt.Errorf("knn search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return Hit{}, false, fmt.Errorf("knn search failed: %s", res.String())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					Name string `json:"name"`
					ID   string `json:"id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return Hit{}, false, fmt.Errorf("decode knn response: %w", err)
	}
	if len(r.Hits.Hits) == 0 {
		return Hit{}, false, nil
	}
	top := r.Hits.Hits[0]
	// cosine similarity is reported as (1 + cos) / 2
	return Hit{Name: top.Source.Name, ID: top.Source.ID, Similarity: 2*top.Score - 1}, true, nil
}

func (e *ElasticsearchIndex) Len() int {
	return int(e.count.Load())
}
