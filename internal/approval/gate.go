// Package approval gates publication on a human decision made in a chat client.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/hiddenclasses/pkg/utils"
	"go.uber.org/zap"
)

// ErrReviewTimeout is returned when no decision arrives within the review timeout.
var ErrReviewTimeout = errors.New("review timed out without a decision")

// Verdict is the reviewer's answer.
type Verdict string

const (
	Approve Verdict = "approve"
	Reject  Verdict = "reject"
)

// Decision is the outcome of one review. Reason is set only for rejections.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason,omitempty"`
}

// State is a review's position in the approval state machine.
type State int

const (
	AwaitingReview State = iota
	AwaitingReason
	ResolvedApprove
	ResolvedReject
)

func (s State) String() string {
	switch s {
	case AwaitingReview:
		return "awaiting_review"
	case AwaitingReason:
		return "awaiting_reason"
	case ResolvedApprove:
		return "approved"
	case ResolvedReject:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Resolved reports whether s is terminal.
func (s State) Resolved() bool {
	return s == ResolvedApprove || s == ResolvedReject
}

// EventKind classifies an incoming chat update.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventAction
	EventMessage
)

// Event is one chat update. Data is the action payload for EventAction, Text the
// message body for EventMessage. CallbackID is set for button presses.
type Event struct {
	ID         int
	Kind       EventKind
	Data       string
	Text       string
	CallbackID string
}

// Channel is the chat transport the gate drives.
type Channel interface {
	SendReview(ctx context.Context, postText string) error
	AskReason(ctx context.Context) error
	Acknowledge(ctx context.Context, callbackID string) error
	Updates(ctx context.Context, offset int) ([]Event, error)
}

// Review holds the state of one review.
type Review struct {
	state  State
	reason string
}

// State returns the current state.
func (r *Review) State() State { return r.state }

// Step applies ev. It reports whether the event must be acknowledged and
// whether the reviewer must be asked for a rejection reason.
func (r *Review) Step(ev Event) (ack, askReason bool) {
	ack = ev.CallbackID != ""
	switch r.state {
	case AwaitingReview:
		if ev.Kind != EventAction {
			return ack, false
		}
		switch Verdict(ev.Data) {
		case Approve:
			r.state = ResolvedApprove
		case Reject:
			r.state = AwaitingReason
			return ack, true
		}
	case AwaitingReason:
		if ev.Kind == EventMessage {
			if text := strings.TrimSpace(ev.Text); text != "" {
				r.reason = text
				r.state = ResolvedReject
			}
		}
	}
	return ack, false
}

// Decision returns the outcome of a resolved review.
func (r *Review) Decision() (Decision, bool) {
	switch r.state {
	case ResolvedApprove:
		return Decision{Verdict: Approve}, true
	case ResolvedReject:
		return Decision{Verdict: Reject, Reason: r.reason}, true
	default:
		return Decision{}, false
	}
}

// Gate sends a draft for review and polls the channel until it is resolved.
type Gate struct {
	ch       Channel
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithPollInterval sets the pause between empty polls.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gate) { g.interval = d }
}

// WithTimeout bounds the whole review. Zero waits forever.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) { g.timeout = d }
}

// NewGate creates a gate over ch. The poll interval defaults to one second.
func NewGate(ch Channel, opts ...Option) *Gate {
	g := &Gate{ch: ch, interval: time.Second}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = utils.OrNop(g.logger)
	return g
}

// Review sends postText for review and blocks until the reviewer approves, or
// rejects and gives a reason.
func (g *Gate) Review(ctx context.Context, postText string) (Decision, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if err := g.ch.SendReview(ctx, postText); err != nil {
		return Decision{}, fmt.Errorf("send review: %w", err)
	}
	g.logger.Info("post sent for review")

	review := &Review{}
	offset := 0
	for {
		events, err := g.ch.Updates(ctx, offset)
		if err != nil {
			return Decision{}, g.pollError(ctx, err)
		}
		for _, ev := range events {
			if ev.ID < offset {
				continue
			}
			offset = ev.ID + 1
			before := review.State()
			ack, askReason := review.Step(ev)
			if ack {
				if err := g.ch.Acknowledge(ctx, ev.CallbackID); err != nil {
					return Decision{}, fmt.Errorf("acknowledge action: %w", err)
				}
			}
			if askReason {
				if err := g.ch.AskReason(ctx); err != nil {
					return Decision{}, fmt.Errorf("ask rejection reason: %w", err)
				}
			}
			if review.State() != before {
				g.logger.Debug("review state changed",
					zap.Stringer("from", before),
					zap.Stringer("to", review.State()),
					zap.Int("update_id", ev.ID))
			}
			if d, ok := review.Decision(); ok {
				g.logger.Info("review resolved", zap.String("verdict", string(d.Verdict)), zap.String("reason", d.Reason))
				return d, nil
			}
		}
		if len(events) == 0 {
			if err := g.wait(ctx); err != nil {
				return Decision{}, g.pollError(ctx, err)
			}
		}
	}
}

func (g *Gate) wait(ctx context.Context) error {
	if g.interval <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (g *Gate) pollError(ctx context.Context, err error) error {
	if g.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrReviewTimeout
	}
	return fmt.Errorf("poll review updates: %w", err)
}
