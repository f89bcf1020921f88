package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	// networkQuietWindow is how long the request count must stay at or
	// below maxPendingForIdle before the page counts as quiescent.
	networkQuietWindow = 500 * time.Millisecond

	// networkIdleBudget bounds the whole wait so pages holding open
	// long-polling or analytics connections cannot stall a capture.
	networkIdleBudget = 10 * time.Second

	// maxPendingForIdle tolerates a couple of persistent connections,
	// matching the usual "network idle 2" heuristic.
	maxPendingForIdle = 2
)

// idleWaiter tracks in-flight network requests on a chromedp target and
// exposes an action that blocks until the page goes quiet.
type idleWaiter struct {
	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	activity chan struct{}
}

func newIdleWaiter(ctx context.Context) *idleWaiter {
	w := &idleWaiter{
		inflight: make(map[network.RequestID]struct{}),
		activity: make(chan struct{}, 1),
	}
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			w.track(e.RequestID, true)
		case *network.EventLoadingFinished:
			w.track(e.RequestID, false)
		case *network.EventLoadingFailed:
			w.track(e.RequestID, false)
		}
	})
	return w
}

func (w *idleWaiter) track(id network.RequestID, started bool) {
	w.mu.Lock()
	if started {
		w.inflight[id] = struct{}{}
	} else {
		delete(w.inflight, id)
	}
	w.mu.Unlock()

	select {
	case w.activity <- struct{}{}:
	default:
	}
}

func (w *idleWaiter) pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inflight)
}

// wait returns an action that resolves once the in-flight request count
// has stayed at or below maxPendingForIdle for a full quiet window, or
// once the overall budget elapses, whichever comes first. Spending the
// budget is not an error; the capture proceeds with whatever has loaded.
func (w *idleWaiter) wait() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		budget := time.NewTimer(networkIdleBudget)
		defer budget.Stop()
		quiet := time.NewTimer(networkQuietWindow)
		defer quiet.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-budget.C:
				slog.Debug("network idle budget spent", "pending", w.pending())
				return nil
			case <-w.activity:
				if !quiet.Stop() {
					select {
					case <-quiet.C:
					default:
					}
				}
				quiet.Reset(networkQuietWindow)
			case <-quiet.C:
				if w.pending() <= maxPendingForIdle {
					return nil
				}
				quiet.Reset(networkQuietWindow)
			}
		}
	})
}
