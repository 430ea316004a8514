package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
)

// newTestClient spins up a stub cluster that records requests and replies
// with canned bodies.
func newTestClient(t *testing.T, handler func(r *http.Request, body []byte) (int, string)) (*Client, *[]string) {
	t.Helper()

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		paths = append(paths, r.Method+" "+r.URL.Path)

		status, resp := 200, `{}`
		if handler != nil {
			status, resp = handler(r, body)
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, resp) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	return NewWithClient(es, GigsIndex), &paths
}

func TestAddDocumentTargetsIndexAndID(t *testing.T) {
	c, paths := newTestClient(t, nil)

	err := c.AddDocument(context.Background(), "g1", map[string]string{"title": "Logo design"})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if len(*paths) != 1 || (*paths)[0] != "PUT /gigs/_doc/g1" {
		t.Errorf("requests = %v, want PUT /gigs/_doc/g1", *paths)
	}
}

func TestApplyReviewSendsScriptedUpdate(t *testing.T) {
	var captured []byte
	c, paths := newTestClient(t, func(r *http.Request, body []byte) (int, string) {
		captured = body
		return 200, `{}`
	})

	if err := c.ApplyReview(context.Background(), "g1", 5); err != nil {
		t.Fatalf("apply review failed: %v", err)
	}

	if len(*paths) != 1 || !strings.Contains((*paths)[0], "/gigs/_update/g1") {
		t.Errorf("requests = %v, want an update on /gigs/_update/g1", *paths)
	}

	var payload struct {
		Script struct {
			Source string `json:"source"`
			Params struct {
				Rating int    `json:"rating"`
				Bucket string `json:"bucket"`
			} `json:"params"`
		} `json:"script"`
	}
	if err := json.Unmarshal(captured, &payload); err != nil {
		t.Fatalf("decode captured body: %v", err)
	}
	if payload.Script.Params.Rating != 5 || payload.Script.Params.Bucket != "5" {
		t.Errorf("script params = %+v, want rating 5 bucket 5", payload.Script.Params)
	}
	if !strings.Contains(payload.Script.Source, "ratingsCount += 1") {
		t.Errorf("script source does not increment ratingsCount: %s", payload.Script.Source)
	}
}

func TestApplyReviewRejectsOutOfRangeRating(t *testing.T) {
	c, _ := newTestClient(t, nil)
	if err := c.ApplyReview(context.Background(), "g1", 6); err == nil {
		t.Fatal("expected error for rating 6")
	}
}

func TestSearchParsesHits(t *testing.T) {
	c, _ := newTestClient(t, func(r *http.Request, body []byte) (int, string) {
		return 200, `{"hits":{"hits":[
			{"_id":"g1","_source":{"title":"Logo design","price":50}},
			{"_id":"g2","_source":{"title":"Banner design","price":30}}
		]}}`
	})

	hits, err := c.Search(context.Background(), Query{Text: "design", MinPrice: 10, MaxPrice: 100})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "g1" || hits[1].ID != "g2" {
		t.Errorf("hits = %+v, want g1 then g2", hits)
	}
}

func TestErrorStatusSurfacesAsError(t *testing.T) {
	c, _ := newTestClient(t, func(r *http.Request, body []byte) (int, string) {
		return 404, `{"error":"not found"}`
	})

	if err := c.DeleteDocument(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for 404 response")
	}
}
