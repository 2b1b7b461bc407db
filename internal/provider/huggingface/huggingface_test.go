package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spinwisely/kbase/config"
	"github.com/spinwisely/kbase/internal/provider"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(config.HuggingFaceConfig{
		APIToken:       "token",
		BaseURL:        srv.URL,
		ChatModel:      "chat-model",
		EmbeddingModel: "embed-model",
		Timeout:        2 * time.Second,
	})
	return c, srv
}

func TestEmbedFlatVector(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("auth header = %q", got)
		}
		if !strings.HasSuffix(r.URL.Path, "/embed-model") {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[0.1, 0.2, 0.3]`))
	})

	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Fatalf("vec = %v", vec)
	}
}

func TestEmbedNestedVector(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[0.5, 0.6]]`))
	})

	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Fatalf("vec = %v", vec)
	}
}

func TestEmbedProviderFault(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := c.Embed(context.Background(), "hello")
	var ee *provider.EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *provider.EmbeddingError, got %v", err)
	}
}

func TestEmbedBatchPreservesIndexAlignment(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs string `json:"inputs"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Inputs == "poison" {
			http.Error(w, "boom", http.StatusBadRequest)
			return
		}
		// vector encodes the input so alignment is checkable
		_, _ = fmt.Fprintf(w, `[%d.0]`, len(req.Inputs))
	})

	texts := []string{"a", "bb", "poison", "dddd", "eeeee"}
	res, err := c.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}

	if len(res.Vectors) != len(texts)-1 {
		t.Fatalf("want %d successes, got %d", len(texts)-1, len(res.Vectors))
	}
	if len(res.Failures) != 1 || res.Failures[0].Index != 2 {
		t.Fatalf("want a single failure at index 2, got %+v", res.Failures)
	}
	for _, v := range res.Vectors {
		if int(v.Values[0]) != len(texts[v.Index]) {
			t.Fatalf("vector at index %d does not belong to input %q", v.Index, texts[v.Index])
		}
	}
	if res.Complete() {
		t.Fatalf("batch with a failure must not report complete")
	}
}

func TestGenerate(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs     string         `json:"inputs"`
			Parameters map[string]any `json:"parameters"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !strings.HasPrefix(req.Inputs, "system rules") {
			t.Errorf("system prompt missing from inputs: %q", req.Inputs)
		}
		if !strings.HasSuffix(req.Inputs, "Answer:") {
			t.Errorf("inputs should end with the answer cue: %q", req.Inputs)
		}
		if req.Parameters["return_full_text"] != false {
			t.Errorf("return_full_text should be false")
		}
		_, _ = w.Write([]byte(`[{"generated_text": "  an answer  "}]`))
	})

	got, err := c.Generate(context.Background(), "a prompt", provider.GenerateOptions{SystemPrompt: "system rules"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "an answer" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerateFault(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading", http.StatusBadRequest)
	})

	_, err := c.Generate(context.Background(), "p", provider.GenerateOptions{})
	var ge *provider.GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("expected *provider.GenerationError, got %v", err)
	}
}
