package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Result is the outcome of one channel attempt.
type Result struct {
	Channel string
	Success bool
	Error   string
}

// Outcome aggregates every channel attempt for one notification. Success is
// true when at least one channel went through: the reminder reached the
// user, even if other transports failed.
type Outcome struct {
	Success      bool
	Results      []Result
	ErrorMessage string
}

// Dispatcher fans a notification out to its channels. Channels are
// attempted independently; one failing or hanging must not prevent the
// others from being tried.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher. timeout bounds each channel attempt
// so a slow transport cannot stall the rest of the sweep.
func NewDispatcher(timeout time.Duration, channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels, timeout: timeout}
}

// Dispatch attempts every enabled channel in registration order and
// aggregates the results. Channel errors are captured in the outcome,
// never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message, r Recipient) Outcome {
	var out Outcome
	var failures []string

	for _, ch := range d.channels {
		if !ch.Enabled(r) {
			continue
		}

		if err := d.sendOne(ctx, ch, msg, r); err != nil {
			out.Results = append(out.Results, Result{Channel: ch.Name(), Success: false, Error: err.Error()})
			failures = append(failures, fmt.Sprintf("%s: %v", ch.Name(), err))
			continue
		}
		out.Results = append(out.Results, Result{Channel: ch.Name(), Success: true})
		out.Success = true
	}

	if len(out.Results) == 0 {
		out.ErrorMessage = "no delivery channel enabled for user"
		return out
	}
	if !out.Success {
		out.ErrorMessage = strings.Join(failures, "; ")
	}
	return out
}

// sendOne runs a single channel attempt under the per-channel timeout. The
// send itself runs in a goroutine because not every transport honors
// context cancellation.
func (d *Dispatcher) sendOne(ctx context.Context, ch Channel, msg Message, r Recipient) error {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- ch.Send(cctx, msg, r)
	}()

	select {
	case err := <-done:
		return err
	case <-cctx.Done():
		return fmt.Errorf("channel timed out after %s", d.timeout)
	}
}
