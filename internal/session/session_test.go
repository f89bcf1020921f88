package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/flawless/internal/capture"
)

type displayRecorder struct {
	mu      sync.Mutex
	commits []string
}

func (d *displayRecorder) record(html string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commits = append(d.commits, html)
}

func (d *displayRecorder) last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.commits) == 0 {
		return ""
	}
	return d.commits[len(d.commits)-1]
}

func (d *displayRecorder) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.commits)
}

// studioStub scripts the server side of one workflow.
type studioStub struct {
	captureResult  capture.Result
	captureStatus  int
	generateFrames []string
	iterateFrames  []string
}

func (st *studioStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/capture", func(w http.ResponseWriter, r *http.Request) {
		if st.captureStatus != 0 && st.captureStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(st.captureStatus)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "url must be a valid http or https URL"})
			return
		}
		_ = json.NewEncoder(w).Encode(st.captureResult)
	})
	writeFrames := func(w http.ResponseWriter, frames []string) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
		}
	}
	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w, st.generateFrames)
	})
	mux.HandleFunc("/iterate", func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w, st.iterateFrames)
	})
	return mux
}

func deltaFrames(chunks ...string) []string {
	frames := make([]string, 0, len(chunks)+1)
	for _, chunk := range chunks {
		payload, _ := json.Marshal(map[string]string{"text": chunk})
		frames = append(frames, string(payload))
	}
	return append(frames, "[DONE]")
}

func newReadySession(t *testing.T, stub *studioStub, display *displayRecorder) (*Session, func()) {
	t.Helper()
	srv := httptest.NewServer(stub.handler())

	var displayFn func(string)
	if display != nil {
		displayFn = display.record
	}
	sess := New(NewClient(srv.URL), Options{
		Display:        displayFn,
		DebounceWindow: 5 * time.Millisecond,
	})
	return sess, srv.Close
}

func TestSessionWorkflow(t *testing.T) {
	stub := &studioStub{
		captureResult: capture.Result{
			Screenshot: "UE5H",
			HTML:       "<html><body>src</body></html>",
			Title:      "Example Site",
			URL:        "https://example.com",
		},
		generateFrames: deltaFrames("```html\n<d", "iv>proto</di", "v>\n```"),
		iterateFrames:  deltaFrames("```html\n<div>proto v2</div>\n```"),
	}
	display := &displayRecorder{}
	sess, closeSrv := newReadySession(t, stub, display)
	defer closeSrv()

	ctx := context.Background()

	if got := sess.State(); got != StateIdle {
		t.Fatalf("initial state = %q; want idle", got)
	}

	if err := sess.Capture(ctx, "https://example.com"); err != nil {
		t.Fatalf("Capture() = %v; want nil", err)
	}
	if got := sess.State(); got != StateAwaitingGoal {
		t.Fatalf("state after capture = %q; want awaiting_goal", got)
	}
	if got := sess.CaptureResult().Title; got != "Example Site" {
		t.Fatalf("capture title = %q; want %q", got, "Example Site")
	}

	if err := sess.Generate(ctx, "make a dashboard"); err != nil {
		t.Fatalf("Generate() = %v; want nil", err)
	}
	if got := sess.State(); got != StateReady {
		t.Fatalf("state after generate = %q; want ready", got)
	}
	if got := sess.ExtractedHTML(); got != "<div>proto</div>" {
		t.Fatalf("extracted = %q; want %q", got, "<div>proto</div>")
	}
	// Completion commits immediately, no debounce wait.
	if got := sess.DisplayedHTML(); got != "<div>proto</div>" {
		t.Fatalf("displayed = %q; want %q", got, "<div>proto</div>")
	}
	if got := display.last(); got != "<div>proto</div>" {
		t.Fatalf("display callback last = %q; want final extraction", got)
	}

	if err := sess.Iterate(ctx, "version two"); err != nil {
		t.Fatalf("Iterate() = %v; want nil", err)
	}
	if got := sess.IterationCount(); got != 1 {
		t.Fatalf("iterations = %d; want 1", got)
	}
	if got := sess.DisplayedHTML(); got != "<div>proto v2</div>" {
		t.Fatalf("displayed = %q; want %q", got, "<div>proto v2</div>")
	}
	if got := sess.State(); got != StateReady {
		t.Fatalf("state after iterate = %q; want ready", got)
	}
}

func TestSessionCaptureFailureStaysIdle(t *testing.T) {
	stub := &studioStub{captureStatus: http.StatusBadRequest}
	sess, closeSrv := newReadySession(t, stub, nil)
	defer closeSrv()

	err := sess.Capture(context.Background(), "ftp://nope")
	if err == nil {
		t.Fatalf("Capture() = nil; want error")
	}
	if !strings.Contains(err.Error(), "url must be a valid http or https URL") {
		t.Fatalf("error = %v; want server detail surfaced", err)
	}
	if got := sess.State(); got != StateIdle {
		t.Fatalf("state after failed capture = %q; want idle", got)
	}
}

func TestSessionGenerateErrorDiscardsPartialOutput(t *testing.T) {
	partial, _ := json.Marshal(map[string]string{"text": "```html\n<div>half"})
	failure, _ := json.Marshal(map[string]string{"error": "Generation failed"})
	stub := &studioStub{
		captureResult:  capture.Result{Screenshot: "s", URL: "https://example.com"},
		generateFrames: []string{string(partial), string(failure)},
	}
	display := &displayRecorder{}
	sess, closeSrv := newReadySession(t, stub, display)
	defer closeSrv()

	ctx := context.Background()
	if err := sess.Capture(ctx, "https://example.com"); err != nil {
		t.Fatalf("Capture() = %v", err)
	}

	err := sess.Generate(ctx, "make a dashboard")
	if err == nil || !strings.Contains(err.Error(), "Generation failed") {
		t.Fatalf("Generate() = %v; want error frame message", err)
	}
	if got := sess.State(); got != StateAwaitingGoal {
		t.Fatalf("state after failed generate = %q; want awaiting_goal", got)
	}
	if got := sess.ExtractedHTML(); got != "" {
		t.Fatalf("extracted after failure = %q; want empty", got)
	}
	if got := sess.DisplayedHTML(); got != "" {
		t.Fatalf("displayed after failure = %q; want empty", got)
	}
}

func TestSessionIterateErrorPreservesPrototype(t *testing.T) {
	failure, _ := json.Marshal(map[string]string{"error": "Iteration failed"})
	stub := &studioStub{
		captureResult:  capture.Result{Screenshot: "s", URL: "https://example.com"},
		generateFrames: deltaFrames("```html\n<div>good</div>\n```"),
		iterateFrames:  []string{string(failure)},
	}
	display := &displayRecorder{}
	sess, closeSrv := newReadySession(t, stub, display)
	defer closeSrv()

	ctx := context.Background()
	if err := sess.Capture(ctx, "https://example.com"); err != nil {
		t.Fatalf("Capture() = %v", err)
	}
	if err := sess.Generate(ctx, "goal"); err != nil {
		t.Fatalf("Generate() = %v", err)
	}

	err := sess.Iterate(ctx, "break it")
	if err == nil || !strings.Contains(err.Error(), "Iteration failed") {
		t.Fatalf("Iterate() = %v; want error frame message", err)
	}
	if got := sess.State(); got != StateReady {
		t.Fatalf("state after failed iterate = %q; want ready", got)
	}
	if got := sess.IterationCount(); got != 0 {
		t.Fatalf("iterations after failure = %d; want 0", got)
	}
	if got := sess.DisplayedHTML(); got != "<div>good</div>" {
		t.Fatalf("displayed after failure = %q; want last good prototype", got)
	}
	if got := display.last(); got != "<div>good</div>" {
		t.Fatalf("display callback last = %q; want restored prototype", got)
	}
}

func TestSessionStateRejections(t *testing.T) {
	stub := &studioStub{
		captureResult:  capture.Result{Screenshot: "s", URL: "https://example.com"},
		generateFrames: deltaFrames("```html\n<div></div>\n```"),
	}
	sess, closeSrv := newReadySession(t, stub, nil)
	defer closeSrv()

	ctx := context.Background()

	if err := sess.Generate(ctx, "goal"); err == nil {
		t.Fatalf("Generate() before capture = nil; want state error")
	}
	if err := sess.Iterate(ctx, "change"); err == nil {
		t.Fatalf("Iterate() before generate = nil; want state error")
	}

	if err := sess.Capture(ctx, "https://example.com"); err != nil {
		t.Fatalf("Capture() = %v", err)
	}
	if err := sess.Capture(ctx, "https://example.com"); err == nil {
		t.Fatalf("second Capture() = nil; want state error")
	}
	if err := sess.Iterate(ctx, "change"); err == nil {
		t.Fatalf("Iterate() before generate = nil; want state error")
	}
}

func TestSessionEmptyExtractionNeverOverwrites(t *testing.T) {
	sess := New(NewClient("http://127.0.0.1:0"), Options{DebounceWindow: time.Millisecond})

	// The opening fence alone extracts to nothing; the stored candidate
	// must stay untouched.
	sess.appendDelta("```html\n")
	if got := sess.ExtractedHTML(); got != "" {
		t.Fatalf("extracted = %q; want empty before any content", got)
	}

	sess.appendDelta("<p>x</p>")
	if got := sess.ExtractedHTML(); got != "<p>x</p>" {
		t.Fatalf("extracted = %q; want %q", got, "<p>x</p>")
	}
}

func TestSessionFinishWithNoOutputCommitsNothing(t *testing.T) {
	display := &displayRecorder{}
	sess := New(NewClient("http://127.0.0.1:0"), Options{
		Display:        display.record,
		DebounceWindow: time.Millisecond,
	})

	sess.finish()
	if got := display.count(); got != 0 {
		t.Fatalf("display called %d times on empty output; want 0", got)
	}
}

func TestDeployPrompt(t *testing.T) {
	stub := &studioStub{
		captureResult: capture.Result{
			Screenshot: "s", Title: "Example Site", URL: "https://example.com",
		},
		generateFrames: deltaFrames("```html\n<div>final</div>\n```"),
	}
	sess, closeSrv := newReadySession(t, stub, nil)
	defer closeSrv()

	ctx := context.Background()
	if err := sess.Capture(ctx, "https://example.com"); err != nil {
		t.Fatalf("Capture() = %v", err)
	}
	if err := sess.Generate(ctx, "make a dashboard"); err != nil {
		t.Fatalf("Generate() = %v", err)
	}

	got := sess.DeployPrompt()
	for _, want := range []string{
		`I want to rebuild the frontend of https://example.com ("Example Site").`,
		"Here is what I want:\nmake a dashboard",
		"Use Tailwind CSS for styling.",
		"```html\n<div>final</div>\n```",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("DeployPrompt missing %q:\n%s", want, got)
		}
	}
}
