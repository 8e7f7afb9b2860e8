package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/memvra/branchmind/internal/errs"
)

func TestNew_ValidProviders(t *testing.T) {
	for _, provider := range ValidProviders {
		t.Run(provider, func(t *testing.T) {
			a, err := New(provider, Options{APIKey: "test-key"})
			if err != nil {
				t.Fatalf("New(%q) error: %v", provider, err)
			}
			if got := a.Info().Provider; got != provider {
				t.Errorf("Info().Provider = %q, want %q", got, provider)
			}
		})
	}
}

func TestNew_InvalidProvider(t *testing.T) {
	if _, err := New("invalid", Options{}); err == nil {
		t.Error("expected error for invalid provider")
	}
}

func TestOllama_EmbedAndComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/embed":
			var req ollamaEmbedRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Model != "test-embed" {
				t.Errorf("embed model = %q", req.Model)
			}
			fmt.Fprint(w, `{"embeddings":[[0.1,0.2],[0.3,0.4]]}`)
		case "/api/chat":
			var req ollamaChatRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Stream {
				t.Error("chat request should not stream")
			}
			if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
				t.Errorf("unexpected messages: %+v", req.Messages)
			}
			fmt.Fprint(w, `{"message":{"role":"assistant","content":"short summary"},"done":true}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	a := NewOllama(Options{Host: server.URL + "/", EmbedModel: "test-embed"})
	vecs, err := a.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[1][1] != 0.4 {
		t.Errorf("unexpected vectors: %v", vecs)
	}

	text, err := a.Complete(context.Background(), CompletionRequest{SystemPrompt: "sum", UserMessage: "text"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "short summary" {
		t.Errorf("got %q", text)
	}
}

func TestOllama_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := NewOllama(Options{Host: server.URL})
	_, err := a.Embed(context.Background(), []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestOpenAI_EmbedPreservesOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[2,2]},
			{"object":"embedding","index":0,"embedding":[1,1]}
		],"model":"text-embedding-3-small"}`)
	}))
	defer server.Close()

	a := NewOpenAI(Options{APIKey: "test-key", Host: server.URL + "/v1"})
	vecs, err := a.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("vectors out of order: %v", vecs)
	}
}

func TestGemini_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Hello from "},{"text":"Gemini!"}],"role":"model"}}]}`)
	}))
	defer server.Close()

	a := NewGemini(Options{APIKey: "test-key", Host: server.URL})
	text, err := a.Complete(context.Background(), CompletionRequest{UserMessage: "Hello"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "Hello from Gemini!" {
		t.Errorf("got %q", text)
	}
}

func TestClaude_EmbedUnsupported(t *testing.T) {
	_, err := NewClaude(Options{APIKey: "k"}).Embed(context.Background(), []string{"x"})
	if !errors.Is(err, ErrEmbeddingsUnsupported) {
		t.Errorf("expected ErrEmbeddingsUnsupported, got %v", err)
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestLocal_EmbedIsDeterministicAndSimilar(t *testing.T) {
	a := NewLocal(0)
	ctx := context.Background()
	vecs, err := a.Embed(ctx, []string{
		"the embedding cache avoids recomputing vectors for repeated thoughts",
		"the embedding cache avoids recomputing vectors for repeated thoughts!",
		"the embedding cache avoids recomputing vectors for most repeated thoughts",
		"merge branches after the review meeting on friday",
	})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got := cosine(vecs[0], vecs[1]); got < 0.999 {
		t.Errorf("punctuation-only change should be identical, cos=%f", got)
	}
	if got := cosine(vecs[0], vecs[2]); got <= 0.85 {
		t.Errorf("near-identical text should be very similar, cos=%f", got)
	}
	if got := cosine(vecs[0], vecs[3]); got >= 0.5 {
		t.Errorf("unrelated text should not be similar, cos=%f", got)
	}
}

func TestLocal_CompleteIsExtractive(t *testing.T) {
	a := NewLocal(0)
	out, err := a.Complete(context.Background(), CompletionRequest{
		UserMessage: "First point here. Second point follows!  Third is long and gets dropped.",
		MaxTokens:   6,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "First point here. Second point follows!" {
		t.Errorf("got %q", out)
	}
}

type stubAdapter struct {
	calls atomic.Int32
	err   error
	vec   []float32
	text  string
}

func (s *stubAdapter) Complete(context.Context, CompletionRequest) (string, error) {
	s.calls.Add(1)
	return s.text, s.err
}

func (s *stubAdapter) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return [][]float32{s.vec}, nil
}

func (s *stubAdapter) Info() ModelInfo { return ModelInfo{Provider: "stub"} }

func TestGateway_NormalizesEmbeddings(t *testing.T) {
	stub := &stubAdapter{vec: []float32{3, 4}}
	g := NewGateway(stub, stub, GatewayOptions{}, nil)
	v, err := g.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("not normalized: %v", v)
	}
	if stub.vec[0] != 3 {
		t.Error("provider vector must not be modified")
	}
}

func TestGateway_FailuresAreTypedAndTripBreaker(t *testing.T) {
	stub := &stubAdapter{err: errors.New("model failed to load")}
	g := NewGateway(stub, stub, GatewayOptions{BreakerMaxFailures: 2, BreakerTimeout: time.Minute}, nil)

	for i := 0; i < 4; i++ {
		_, err := g.Embed(context.Background(), "x")
		if !errs.IsKind(err, errs.KindTransientGateway) {
			t.Fatalf("call %d: expected gateway error, got %v", i, err)
		}
	}
	if got := stub.calls.Load(); got != 2 {
		t.Errorf("breaker should stop calls after 2 failures, provider saw %d", got)
	}
}

func TestGateway_Summarize(t *testing.T) {
	stub := &stubAdapter{text: "  a summary \n"}
	g := NewGateway(stub, stub, GatewayOptions{}, nil)
	out, err := g.Summarize(context.Background(), "long text", SummaryOptions{MinLength: 5, MaxLength: 20})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out != "a summary" {
		t.Errorf("got %q", out)
	}

	stub.text = "   "
	if _, err := g.Summarize(context.Background(), "x", SummaryOptions{}); !errs.IsKind(err, errs.KindTransientGateway) {
		t.Errorf("empty summary should be a gateway error, got %v", err)
	}
}
