package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inflow-server/models"
)

func newTestClient(textAPI, imageAPI, speechAPI string) *Client {
	return &Client{
		TextAPI:    textAPI,
		ImageAPI:   imageAPI,
		SpeechAPI:  speechAPI,
		Model:      "test-model",
		Voice:      "test-voice",
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// 把 content 包进 chat completion 信封
func chatEnvelope(content string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"content":%q}}]}`, content)
}

func TestBrainstormParsesIdeas(t *testing.T) {
	content := "```json\n" +
		`[{"title":"t1","hook":"h1","description":"d1","suggestedNiche":"n1"},` +
		`{"title":"t2","hook":"h2","description":"d2","suggestedNiche":"n2"}]` +
		"\n```"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatEnvelope(content))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	ideas, err := c.Brainstorm(context.Background(), "cooking")
	if err != nil {
		t.Fatalf("Brainstorm: %v", err)
	}
	if len(ideas) != 2 {
		t.Fatalf("expected 2 ideas, got %d", len(ideas))
	}
	if ideas[0].Title != "t1" || ideas[1].Hook != "h2" {
		t.Fatalf("unexpected ideas: %+v", ideas)
	}
}

func TestBrainstormMalformedContentIsErrParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatEnvelope("sure, here are some ideas!"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	_, err := c.Brainstorm(context.Background(), "cooking")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestBrainstormTransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // 立即关掉，模拟网关不可达

	c := newTestClient(srv.URL, "", "")
	_, err := c.Brainstorm(context.Background(), "cooking")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestScriptPreservesOrder(t *testing.T) {
	content := `[` +
		`{"id":"s1","time":"0-5s","text":"first","visualPrompt":"p1"},` +
		`{"id":"s2","time":"5-10s","text":"second","visualPrompt":"p2"},` +
		`{"id":"s3","time":"10-15s","text":"third","visualPrompt":"p3"}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatEnvelope(content))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	segments, err := c.Script(context.Background(), models.Idea{Title: "t"})
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	want := []string{"s1", "s2", "s3"}
	if len(segments) != len(want) {
		t.Fatalf("expected %d segments, got %d", len(want), len(segments))
	}
	for i, id := range want {
		if segments[i].ID != id {
			t.Fatalf("segment %d: expected id %s, got %s", i, id, segments[i].ID)
		}
	}
	if segments[1].VoiceoverText != "second" || segments[1].TimeRange != "5-10s" {
		t.Fatalf("unexpected segment: %+v", segments[1])
	}
}

func TestImageReturnsBytesAndMIME(t *testing.T) {
	payload := make([]byte, 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("prompt") == "" {
			t.Errorf("missing prompt query")
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL, "")
	data, mime, err := c.Image(context.Background(), "a red door")
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if len(data) != len(payload) {
		t.Fatalf("expected %d bytes, got %d", len(payload), len(data))
	}
	if mime != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", mime)
	}
}

func TestImageTinyBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "err")
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL, "")
	_, _, err := c.Image(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error for tiny body")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatalf("tiny body is a per-item failure, not unavailability: %v", err)
	}
}

func TestImageAuthFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL, "")
	_, _, err := c.Image(context.Background(), "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSpeechReturnsPCM(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pcm)
	}))
	defer srv.Close()

	c := newTestClient("", "", srv.URL)
	got, err := c.Speech(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Speech: %v", err)
	}
	if len(got) != len(pcm) {
		t.Fatalf("expected %d bytes, got %d", len(pcm), len(got))
	}
}

func TestSpeechAuthFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient("", "", srv.URL)
	if _, err := c.Speech(context.Background(), "hello"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSpeechEmptyBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := newTestClient("", "", srv.URL)
	if _, err := c.Speech(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty audio body")
	}
}

func TestCleanJSONStripsFences(t *testing.T) {
	cases := map[string]string{
		"```json\n[1]\n```": "[1]",
		"```\n[1]\n```":     "[1]",
		"  [1]  ":           "[1]",
		"[1]":               "[1]",
	}
	for in, want := range cases {
		if got := cleanJSON(in); got != want {
			t.Errorf("cleanJSON(%q) = %q, want %q", in, got, want)
		}
	}
}
