package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPReranker_Rerank(t *testing.T) {
	var gotReq rerankRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"index": 2, "relevance_score": 0.97},
				{"index": 0, "relevance_score": 0.41},
			},
		})
	}))
	defer srv.Close()

	r := NewHTTPReranker(srv.URL, "test-key", 5*time.Second)
	docs := []string{"alpha", "beta", "gamma"}
	ranked, err := r.Rerank(context.Background(), "rerank-v2", "query", docs, 2)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}

	if len(ranked) != 2 {
		t.Fatalf("Rerank() returned %d results, want 2", len(ranked))
	}
	if ranked[0].Index != 2 || ranked[1].Index != 0 {
		t.Errorf("Rerank() indices = [%d %d], want [2 0]", ranked[0].Index, ranked[1].Index)
	}
	if ranked[0].Score != 0.97 {
		t.Errorf("Rerank() top score = %v, want 0.97", ranked[0].Score)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want Bearer test-key", gotAuth)
	}
	if gotReq.Model != "rerank-v2" || gotReq.Query != "query" || gotReq.TopN != 2 || len(gotReq.Documents) != 3 {
		t.Errorf("request payload = %+v", gotReq)
	}
}

func TestHTTPReranker_EmptyDocs(t *testing.T) {
	r := NewHTTPReranker("http://unused", "", 0)
	ranked, err := r.Rerank(context.Background(), "m", "q", nil, 5)
	if err != nil || ranked != nil {
		t.Errorf("Rerank() with no docs = (%v, %v), want (nil, nil)", ranked, err)
	}
}

func TestHTTPReranker_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewHTTPReranker(srv.URL, "", time.Second)
	if _, err := r.Rerank(context.Background(), "m", "q", []string{"doc"}, 1); err == nil {
		t.Error("Rerank() should fail on non-200 status")
	}
}

func TestHTTPReranker_OutOfRangeIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{{"index": 7, "relevance_score": 0.5}},
		})
	}))
	defer srv.Close()

	r := NewHTTPReranker(srv.URL, "", time.Second)
	if _, err := r.Rerank(context.Background(), "m", "q", []string{"doc"}, 1); err == nil {
		t.Error("Rerank() should reject out-of-range document index")
	}
}
