package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/moshaveran/moshaver-backend/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return log
}

// writeInChunks flushes the payload in the given slices so the client sees
// arbitrary byte boundaries, including splits in the middle of a line.
func writeInChunks(t *testing.T, w http.ResponseWriter, chunks []string) {
	t.Helper()
	flusher, ok := w.(http.Flusher)
	if !ok {
		t.Fatalf("response writer is not a flusher")
	}
	for _, chunk := range chunks {
		if _, err := w.Write([]byte(chunk)); err != nil {
			return
		}
		flusher.Flush()
	}
}

func streamServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		writeInChunks(t, w, chunks)
	}))
}

const helloEvent = `data: {"choices":[{"delta":{"content":"Hi"}}]}` + "\n\n"

func TestStreamChatCompletionSingleChunk(t *testing.T) {
	srv := streamServer(t, []string{helloEvent + "data: [DONE]\n\n"})
	defer srv.Close()

	client := NewClientWithHTTP(testLogger(t), srv.URL, "test-key", "test-model", srv.Client())

	var deltas []string
	full, err := client.StreamChatCompletion(context.Background(), []Message{{Role: "user", Content: "سلام"}}, func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if full != "Hi" {
		t.Fatalf("full text = %q, want Hi", full)
	}
	if len(deltas) != 1 || deltas[0] != "Hi" {
		t.Fatalf("deltas = %v, want [Hi]", deltas)
	}
}

func TestStreamChatCompletionSplitMidLine(t *testing.T) {
	// The same event split at hostile byte boundaries, including inside
	// the data line, must reassemble to the identical delta sequence.
	splits := [][]string{
		{`data: {"choices":[{"del`, `ta":{"content":"Hi"}}]}` + "\n", "\ndata: [DONE]\n\n"},
		{"d", "ata: ", `{"choices":[{"delta":{"content":"Hi"}}]}`, "\n", "\n", "data: [DO", "NE]\n\n"},
		{helloEvent[:1], helloEvent[1:], "data: [DONE]\n\n"},
	}

	for i, chunks := range splits {
		srv := streamServer(t, chunks)
		client := NewClientWithHTTP(testLogger(t), srv.URL, "test-key", "test-model", srv.Client())

		var deltas []string
		full, err := client.StreamChatCompletion(context.Background(), []Message{{Role: "user", Content: "سلام"}}, func(d string) {
			deltas = append(deltas, d)
		})
		srv.Close()
		if err != nil {
			t.Fatalf("split %d: stream failed: %v", i, err)
		}
		if full != "Hi" {
			t.Fatalf("split %d: full text = %q, want Hi", i, full)
		}
		if len(deltas) != 1 || deltas[0] != "Hi" {
			t.Fatalf("split %d: deltas = %v, want [Hi]", i, deltas)
		}
	}
}

func TestStreamChatCompletionMultipleDeltas(t *testing.T) {
	chunks := []string{
		`data: {"choices":[{"delta":{"content":"سلام"}}]}` + "\n\n",
		`data: {"choices":[{"delta":{"content":" دنیا"}}]}` + "\n\n",
		`data: {"choices":[{"delta":{}}]}` + "\n\n",
		"data: [DONE]\n\n",
	}
	srv := streamServer(t, chunks)
	defer srv.Close()
	client := NewClientWithHTTP(testLogger(t), srv.URL, "test-key", "test-model", srv.Client())

	var deltas []string
	full, err := client.StreamChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}}, func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if full != "سلام دنیا" {
		t.Fatalf("full text = %q", full)
	}
	if len(deltas) != 2 {
		t.Fatalf("deltas = %v, want two non-empty deltas", deltas)
	}
}

func TestStreamChatCompletionSkipsMalformedLines(t *testing.T) {
	chunks := []string{
		"data: this is not json\n\n",
		`data: {"choices":[{"delta":{"content":"ok"}}]}` + "\n\n",
		"garbage without prefix\n\n",
		"data: [DONE]\n\n",
	}
	srv := streamServer(t, chunks)
	defer srv.Close()
	client := NewClientWithHTTP(testLogger(t), srv.URL, "test-key", "test-model", srv.Client())

	full, err := client.StreamChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("malformed lines must not abort the stream: %v", err)
	}
	if full != "ok" {
		t.Fatalf("full text = %q, want ok", full)
	}
}

func TestStreamChatCompletionUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()
	client := NewClientWithHTTP(testLogger(t), srv.URL, "test-key", "test-model", srv.Client())

	called := false
	_, err := client.StreamChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}}, func(string) {
		called = true
	})
	if err == nil {
		t.Fatalf("expected error on non-2xx upstream")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("error should carry status: %v", err)
	}
	if called {
		t.Fatalf("no deltas expected on upstream error")
	}
}

func TestStreamChatCompletionClientCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte(helloEvent))
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClientWithHTTP(testLogger(t), srv.URL, "test-key", "test-model", srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := client.StreamChatCompletion(ctx, []Message{{Role: "user", Content: "hi"}}, func(string) {
		cancel()
	})
	if err == nil {
		t.Fatalf("expected error after context cancellation")
	}
}
