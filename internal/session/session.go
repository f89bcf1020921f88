// Package session holds the client-side state for one
// capture-through-iteration workflow: the capture result, the
// accumulating token buffer, the extracted and displayed HTML, and the
// state machine sequencing capture, generation and iteration.
//
// A session lives as long as its owner keeps it; nothing is persisted.
// Exactly one stream is consumed at a time: Generate and Iterate reject
// calls while another call is in flight.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/flawless/internal/capture"
	"github.com/dgnsrekt/flawless/internal/extract"
)

// State names one position in the session lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateCapturing    State = "capturing"
	StateAwaitingGoal State = "awaiting_goal"
	StateGenerating   State = "generating"
	StateReady        State = "ready"
	StateIterating    State = "iterating"
)

const defaultDebounceWindow = 500 * time.Millisecond

// Options configures a session. Display receives every committed
// display update (debounced during streaming, immediate on completion).
// Phase receives short progress strings for the user.
type Options struct {
	Display        func(html string)
	Phase          func(text string)
	DebounceWindow time.Duration
}

// Session is one builder workflow instance. All exported methods are
// safe for concurrent use, though the lifecycle itself is sequential.
type Session struct {
	client *Client

	mu          sync.Mutex
	state       State
	capture     capture.Result
	goal        string
	accumulated strings.Builder
	extracted   string
	displayed   string
	iterations  int

	display  func(string)
	phaseFn  func(string)
	debounce *debouncer
}

// New creates an idle session talking to the given studio API client.
func New(client *Client, opts Options) *Session {
	window := opts.DebounceWindow
	if window <= 0 {
		window = defaultDebounceWindow
	}
	s := &Session{
		client:  client,
		state:   StateIdle,
		display: opts.Display,
		phaseFn: opts.Phase,
	}
	s.debounce = newDebouncer(window, s.commitDisplay)
	return s
}

// Capture snapshots rawURL and, on success, moves the session to
// AwaitingGoal. On failure the session stays Idle.
func (s *Session) Capture(ctx context.Context, rawURL string) error {
	if err := s.transition(StateIdle, StateCapturing); err != nil {
		return err
	}
	s.phase("Capturing " + rawURL + "...")

	result, err := s.client.Capture(ctx, rawURL)
	if err != nil {
		s.setState(StateIdle)
		return err
	}

	s.mu.Lock()
	s.capture = result
	s.state = StateAwaitingGoal
	s.mu.Unlock()
	return nil
}

// Generate streams the initial prototype for the given goal. On stream
// failure the partial accumulation is discarded and the session returns
// to AwaitingGoal so the goal can be resubmitted.
func (s *Session) Generate(ctx context.Context, goal string) error {
	s.mu.Lock()
	if s.state != StateAwaitingGoal {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot generate in state %q", state)
	}
	s.state = StateGenerating
	s.goal = goal
	s.accumulated.Reset()
	cap := s.capture
	s.mu.Unlock()

	s.phase("Analyzing screenshot...")
	body, err := s.client.Generate(ctx, cap, goal)
	if err != nil {
		s.failGeneration()
		return err
	}
	defer body.Close()

	s.phase("Generating prototype...")
	if err := s.consume(body, "generate"); err != nil {
		s.failGeneration()
		return err
	}

	s.setState(StateReady)
	return nil
}

// Iterate streams a change request against the current prototype. On
// failure the previously displayed HTML is preserved and the iteration
// count is not incremented.
func (s *Session) Iterate(ctx context.Context, instruction string) error {
	s.mu.Lock()
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot iterate in state %q", state)
	}
	if s.extracted == "" {
		s.mu.Unlock()
		return fmt.Errorf("no prototype to iterate on")
	}
	s.state = StateIterating
	prevExtracted := s.extracted
	prevDisplayed := s.displayed
	sourceURL := s.capture.URL
	s.accumulated.Reset()
	s.mu.Unlock()

	s.phase("Applying changes...")
	body, err := s.client.Iterate(ctx, prevExtracted, instruction, sourceURL)
	if err != nil {
		s.failIteration(prevExtracted, prevDisplayed)
		return err
	}
	defer body.Close()

	if err := s.consume(body, "iterate"); err != nil {
		s.failIteration(prevExtracted, prevDisplayed)
		return err
	}

	s.mu.Lock()
	s.iterations++
	s.state = StateReady
	s.mu.Unlock()
	return nil
}

// failGeneration discards partial output; a failed generation leaves
// nothing worth showing.
func (s *Session) failGeneration() {
	s.debounce.Cancel()
	s.mu.Lock()
	s.accumulated.Reset()
	s.extracted = ""
	s.displayed = ""
	s.state = StateAwaitingGoal
	s.mu.Unlock()
}

// failIteration restores the last good prototype.
func (s *Session) failIteration(prevExtracted, prevDisplayed string) {
	s.debounce.Cancel()
	s.mu.Lock()
	s.extracted = prevExtracted
	s.state = StateReady
	s.mu.Unlock()
	s.commitDisplay(prevDisplayed)
}

// appendDelta grows the buffer, re-extracts, and schedules a debounced
// display update. An empty extraction never overwrites a previously
// displayed candidate.
func (s *Session) appendDelta(text string) {
	s.mu.Lock()
	s.accumulated.WriteString(text)
	buf := s.accumulated.String()
	s.mu.Unlock()

	extracted := extract.Extract(buf)
	if extracted == "" {
		return
	}
	s.mu.Lock()
	s.extracted = extracted
	s.mu.Unlock()
	s.debounce.Update(extracted)
}

// finish snaps the final extraction into the display with no debounce
// delay.
func (s *Session) finish() {
	s.debounce.Cancel()
	s.mu.Lock()
	final := extract.Extract(s.accumulated.String())
	if final != "" {
		s.extracted = final
	}
	s.mu.Unlock()
	if final != "" {
		s.commitDisplay(final)
	}
}

func (s *Session) commitDisplay(html string) {
	if html == "" {
		return
	}
	s.mu.Lock()
	s.displayed = html
	display := s.display
	s.mu.Unlock()
	if display != nil {
		display(html)
	}
}

func (s *Session) transition(from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return fmt.Errorf("cannot move to %q from %q", to, s.state)
	}
	s.state = to
	return nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) phase(text string) {
	slog.Debug("session phase", "text", text)
	if s.phaseFn != nil {
		s.phaseFn(text)
	}
}

// State returns the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CaptureResult returns the snapshot held by the session.
func (s *Session) CaptureResult() capture.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture
}

// ExtractedHTML returns the current best prototype HTML.
func (s *Session) ExtractedHTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extracted
}

// DisplayedHTML returns the last committed display value.
func (s *Session) DisplayedHTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayed
}

// IterationCount returns how many iterations have completed.
func (s *Session) IterationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iterations
}
