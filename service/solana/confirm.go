package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// minPollFloor bounds MinInterval from below so a misconfigured schedule
// cannot hammer the endpoint. Tests lower it.
var minPollFloor = 100 * time.Millisecond

// ConfirmOptions controls how long and how often Confirm polls.
type ConfirmOptions struct {
	// Timeout is the wall-clock budget for reaching a terminal status.
	Timeout time.Duration
	// MinInterval is the delay after the first unsuccessful poll.
	MinInterval time.Duration
	// MaxInterval caps the doubling backoff.
	MaxInterval time.Duration
}

// DefaultConfirmOptions returns the schedule used when none is configured.
func DefaultConfirmOptions() ConfirmOptions {
	return ConfirmOptions{
		Timeout:     60 * time.Second,
		MinInterval: 500 * time.Millisecond,
		MaxInterval: 4 * time.Second,
	}
}

func (o ConfirmOptions) normalized() ConfirmOptions {
	def := DefaultConfirmOptions()
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.MinInterval < minPollFloor {
		o.MinInterval = minPollFloor
	}
	if o.MaxInterval < o.MinInterval {
		o.MaxInterval = o.MinInterval
	}
	return o
}

// Confirm waits for sig using the client's configured ConfirmOptions.Timeout.
// See ConfirmWithin.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature) (Confirmation, error) {
	return c.ConfirmWithin(ctx, sig, c.confirm.Timeout)
}

// ConfirmWithin polls the signature status until it is confirmed or failed, or
// timeout elapses. A non-positive timeout uses the default. The first poll is
// immediate and the interval then doubles up to MaxInterval. Transient poll
// errors are retried until the deadline.
//
// A failed on-chain status returns a Confirmation with StatusFailed and a nil
// error; the caller decides how to surface it.
func (c *Client) ConfirmWithin(ctx context.Context, sig solana.Signature, timeout time.Duration) (Confirmation, error) {
	opts := c.confirm
	opts.Timeout = timeout
	opts = opts.normalized()
	start := time.Now()
	deadline := start.Add(opts.Timeout)

	logger := c.logger.With("signature", sig.String())
	logger.DebugContext(ctx, "waiting for confirmation", "timeout", opts.Timeout)

	conf := Confirmation{Signature: sig, Status: StatusPending}
	interval := opts.MinInterval
	var lastErr error

	for {
		status, slot, onChainErr, err := c.pollStatus(ctx, sig, deadline)
		conf.Polls++

		if err != nil {
			if ctx.Err() != nil {
				c.recordWait("canceled", start)
				return conf, ctx.Err()
			}
			lastErr = err
			c.recordPoll("error")
			logger.WarnContext(ctx, "confirmation poll failed", "poll", conf.Polls, "error", err)
		} else {
			c.recordPoll(string(status))
			conf.Status = status
			conf.Slot = slot
			conf.Err = onChainErr
			if status.IsTerminal() {
				c.recordWait(string(status), start)
				logger.InfoContext(ctx, "transaction reached terminal status",
					"status", status,
					"slot", slot,
					"polls", conf.Polls,
					"duration", time.Since(start),
				)
				return conf, nil
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := interval
		if wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.recordWait("canceled", start)
			return conf, ctx.Err()
		case <-timer.C:
		}

		interval *= 2
		if interval > opts.MaxInterval {
			interval = opts.MaxInterval
		}
	}

	c.recordWait("timeout", start)
	logger.WarnContext(ctx, "confirmation timed out", "polls", conf.Polls, "last_error", lastErr)
	if lastErr != nil {
		return conf, fmt.Errorf("signature %s after %s: %w (last poll error: %v)", sig, opts.Timeout, ErrConfirmationTimeout, lastErr)
	}
	return conf, fmt.Errorf("signature %s after %s: %w", sig, opts.Timeout, ErrConfirmationTimeout)
}

// pollStatus performs one status query bounded by the overall deadline.
func (c *Client) pollStatus(ctx context.Context, sig solana.Signature, deadline time.Time) (ConfirmationStatus, uint64, string, error) {
	pollCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	start := time.Now()
	out, err := c.rpc.GetSignatureStatuses(pollCtx, sig)
	if errors.Is(err, rpc.ErrNotFound) {
		c.recordCall("GetSignatureStatuses", start, nil)
		return StatusPending, 0, "", nil
	}
	c.recordCall("GetSignatureStatuses", start, err)
	if err != nil {
		return "", 0, "", classifyRPCError("get signature statuses", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return StatusPending, 0, "", nil
	}
	return mapSignatureStatus(out.Value[0])
}

// mapSignatureStatus folds the RPC status into pending, confirmed or failed.
// "processed" is not final enough to count.
func mapSignatureStatus(s *rpc.SignatureStatusesResult) (ConfirmationStatus, uint64, string, error) {
	if s.Err != nil {
		return StatusFailed, s.Slot, fmt.Sprintf("%v", s.Err), nil
	}
	switch s.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return StatusConfirmed, s.Slot, "", nil
	default:
		return StatusPending, s.Slot, "", nil
	}
}

func (c *Client) recordPoll(result string) {
	if c.metrics != nil {
		c.metrics.RecordConfirmationPoll(c.endpoint, result)
	}
}

func (c *Client) recordWait(outcome string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordConfirmationWait(c.endpoint, outcome, time.Since(start).Seconds())
	}
}
