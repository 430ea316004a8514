// Package search wraps the Elasticsearch index holding gig documents. The
// owning service writes to it synchronously after each local mutation; the
// index and the primary store are two independent write targets with no
// transaction between them.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// GigsIndex is the index name for gig documents.
const GigsIndex = "gigs"

const connectRetryDelay = 5 * time.Second

// Client is a thin wrapper over the Elasticsearch API scoped to one index.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// Connect builds a client for the given endpoint and blocks until the
// cluster answers. The service stalls rather than starts without its index;
// this mirrors the cache's opposite policy of degrading instead.
func Connect(ctx context.Context, addr string) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("search: build client: %w", err)
	}

	c := &Client{es: es, index: GigsIndex}
	for {
		res, err := es.Info()
		if err == nil && !res.IsError() {
			res.Body.Close()
			log.Printf("search: connected to %s", addr)
			return c, nil
		}
		if res != nil {
			res.Body.Close()
		}
		log.Printf("search: cluster at %s not ready, retrying: %v", addr, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectRetryDelay):
		}
	}
}

// NewWithClient wraps an existing client, used by tests.
func NewWithClient(es *elasticsearch.Client, index string) *Client {
	return &Client{es: es, index: index}
}

// AddDocument indexes doc under id, replacing any existing document.
func (c *Client) AddDocument(ctx context.Context, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("search: marshal document %s: %w", id, err)
	}

	res, err := c.es.Index(c.index, bytes.NewReader(body),
		c.es.Index.WithDocumentID(id), c.es.Index.WithContext(ctx))
	return c.finish("index", id, res, err)
}

// UpdateDocument applies a partial document to id.
func (c *Client) UpdateDocument(ctx context.Context, id string, partial interface{}) error {
	body, err := json.Marshal(map[string]interface{}{"doc": partial})
	if err != nil {
		return fmt.Errorf("search: marshal partial %s: %w", id, err)
	}

	res, err := c.es.Update(c.index, id, bytes.NewReader(body), c.es.Update.WithContext(ctx))
	return c.finish("update", id, res, err)
}

// DeleteDocument removes id from the index.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.es.Delete(c.index, id, c.es.Delete.WithContext(ctx))
	return c.finish("delete", id, res, err)
}

// GetDocument fetches the raw source of id.
func (c *Client) GetDocument(ctx context.Context, id string) (json.RawMessage, error) {
	res, err := c.es.Get(c.index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("search: get %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search: get %s: %s", id, res.Status())
	}

	var envelope struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("search: decode %s: %w", id, err)
	}
	return envelope.Source, nil
}

// ApplyReview atomically moves the gig document's rating buckets with a
// scripted update, the index-side twin of the seller projection's SQL
// increments.
func (c *Client) ApplyReview(ctx context.Context, id string, rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("search: rating %d out of range", rating)
	}

	body, err := json.Marshal(map[string]interface{}{
		"script": map[string]interface{}{
			"source": `ctx._source.ratingsCount += 1;
ctx._source.ratingSum += params.rating;
ctx._source.ratingCategories[params.bucket].count += 1;
ctx._source.ratingCategories[params.bucket].value += params.rating;`,
			"lang": "painless",
			"params": map[string]interface{}{
				"rating": rating,
				"bucket": fmt.Sprintf("%d", rating),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("search: marshal review script: %w", err)
	}

	res, err := c.es.Update(c.index, id, bytes.NewReader(body), c.es.Update.WithContext(ctx))
	return c.finish("review-update", id, res, err)
}

// Query holds the structured filters for a gig search.
type Query struct {
	Text        string
	Category    string
	MinPrice    float64
	MaxPrice    float64
	MaxDelivery int // days, 0 means any
	From        int
	Size        int
}

// Hit is one search result.
type Hit struct {
	ID     string          `json:"id"`
	Source json.RawMessage `json:"source"`
}

// Search runs a full-text plus structured-filter query and returns the hits.
func (c *Client) Search(ctx context.Context, q Query) ([]Hit, error) {
	must := []interface{}{}
	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"query_string": map[string]interface{}{
				"fields": []string{"username", "title", "description", "categories", "subCategories", "tags"},
				"query":  fmt.Sprintf("*%s*", q.Text),
			},
		})
	}
	if q.Category != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"categories": q.Category},
		})
	}
	if q.MinPrice > 0 || q.MaxPrice > 0 {
		rng := map[string]interface{}{}
		if q.MinPrice > 0 {
			rng["gte"] = q.MinPrice
		}
		if q.MaxPrice > 0 {
			rng["lte"] = q.MaxPrice
		}
		must = append(must, map[string]interface{}{
			"range": map[string]interface{}{"price": rng},
		})
	}
	if q.MaxDelivery > 0 {
		must = append(must, map[string]interface{}{
			"range": map[string]interface{}{"expectedDeliveryDays": map[string]interface{}{"lte": q.MaxDelivery}},
		})
	}

	size := q.Size
	if size <= 0 {
		size = 10
	}

	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{"bool": map[string]interface{}{"must": must}},
		"from":  q.From,
		"size":  size,
	})
	if err != nil {
		return nil, fmt.Errorf("search: marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search: query: %s", snippet(res))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("search: decode results: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{ID: h.ID, Source: h.Source})
	}
	return hits, nil
}

func (c *Client) finish(op, id string, res *esapi.Response, err error) error {
	if err != nil {
		return fmt.Errorf("search: %s %s: %w", op, id, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("search: %s %s: %s", op, id, snippet(res))
	}
	io.Copy(io.Discard, res.Body) //nolint:errcheck
	return nil
}

func snippet(res *esapi.Response) string {
	var sb strings.Builder
	sb.WriteString(res.Status())
	if body, err := io.ReadAll(io.LimitReader(res.Body, 256)); err == nil && len(body) > 0 {
		sb.WriteString(": ")
		sb.Write(body)
	}
	return sb.String()
}
