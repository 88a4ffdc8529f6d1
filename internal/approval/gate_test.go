package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedChannel returns one batch of events per Updates call, then empty polls.
type scriptedChannel struct {
	batches   [][]Event
	polls     int
	offsets   []int
	reviews   []string
	asked     int
	acked     []string
	updateErr error
}

func (s *scriptedChannel) SendReview(_ context.Context, text string) error {
	s.reviews = append(s.reviews, text)
	return nil
}

func (s *scriptedChannel) AskReason(context.Context) error {
	s.asked++
	return nil
}

func (s *scriptedChannel) Acknowledge(_ context.Context, id string) error {
	s.acked = append(s.acked, id)
	return nil
}

func (s *scriptedChannel) Updates(ctx context.Context, offset int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.offsets = append(s.offsets, offset)
	s.polls++
	if s.polls <= len(s.batches) {
		return s.batches[s.polls-1], nil
	}
	return nil, nil
}

func action(id int, data string) Event {
	return Event{ID: id, Kind: EventAction, Data: data, CallbackID: "cb" + data}
}

func message(id int, text string) Event {
	return Event{ID: id, Kind: EventMessage, Text: text}
}

func review(t *testing.T, ch *scriptedChannel) Decision {
	t.Helper()
	d, err := NewGate(ch, WithPollInterval(0)).Review(context.Background(), "draft")
	require.NoError(t, err)
	return d
}

func TestGate_approve(t *testing.T) {
	ch := &scriptedChannel{batches: [][]Event{{action(1, "approve")}}}
	d := review(t, ch)
	assert.Equal(t, Decision{Verdict: Approve}, d)
	assert.Equal(t, []string{"draft"}, ch.reviews)
	assert.Zero(t, ch.asked, "approval never asks for a reason")
	assert.Equal(t, []string{"cbapprove"}, ch.acked)
}

func TestGate_rejectWithReason(t *testing.T) {
	ch := &scriptedChannel{batches: [][]Event{
		{action(1, "reject")},
		{message(2, "too salesy")},
	}}
	d := review(t, ch)
	assert.Equal(t, Decision{Verdict: Reject, Reason: "too salesy"}, d)
	assert.Equal(t, 1, ch.asked)
	assert.Equal(t, []string{"cbreject"}, ch.acked)
}

func TestGate_malformedThenApprove(t *testing.T) {
	ch := &scriptedChannel{batches: [][]Event{
		{{ID: 1, Kind: EventUnknown}, message(2, "random chatter"), action(3, "bogus")},
		{action(4, "approve")},
	}}
	d := review(t, ch)
	assert.Equal(t, Approve, d.Verdict)
	assert.Equal(t, []string{"cbbogus", "cbapprove"}, ch.acked, "every action is acknowledged")
}

func TestGate_blankReasonIsIgnored(t *testing.T) {
	ch := &scriptedChannel{batches: [][]Event{
		{action(1, "reject")},
		{message(2, "   "), action(3, "approve")},
		{message(4, "  off brand  ")},
	}}
	d := review(t, ch)
	assert.Equal(t, Decision{Verdict: Reject, Reason: "off brand"}, d)
	assert.Equal(t, 1, ch.asked)
}

func TestGate_offsetAdvancesAndSkipsOldIDs(t *testing.T) {
	ch := &scriptedChannel{batches: [][]Event{
		{message(5, "hi")},
		nil,
		{action(3, "approve"), action(7, "approve")},
	}}
	d := review(t, ch)
	assert.Equal(t, Approve, d.Verdict)
	assert.Equal(t, []int{0, 6, 6}, ch.offsets)
	assert.Equal(t, []string{"cbapprove"}, ch.acked, "the stale update below the offset is skipped entirely")
}

func TestGate_contextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := &scriptedChannel{}
	done := make(chan error, 1)
	go func() {
		_, err := NewGate(ch, WithPollInterval(time.Millisecond)).Review(ctx, "draft")
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("review did not stop after cancel")
	}
}

func TestGate_timeout(t *testing.T) {
	_, err := NewGate(&scriptedChannel{}, WithPollInterval(time.Millisecond), WithTimeout(20*time.Millisecond)).
		Review(context.Background(), "draft")
	assert.ErrorIs(t, err, ErrReviewTimeout)
}

func TestGate_updateError(t *testing.T) {
	boom := errors.New("network down")
	_, err := NewGate(&scriptedChannel{updateErr: boom}, WithPollInterval(0)).Review(context.Background(), "draft")
	assert.ErrorIs(t, err, boom)
}

func TestReview_Step(t *testing.T) {
	tests := []struct {
		name    string
		start   State
		ev      Event
		want    State
		wantAck bool
		wantAsk bool
	}{
		{"approve", AwaitingReview, action(1, "approve"), ResolvedApprove, true, false},
		{"reject", AwaitingReview, action(1, "reject"), AwaitingReason, true, true},
		{"message while awaiting review", AwaitingReview, message(1, "hello"), AwaitingReview, false, false},
		{"unknown action", AwaitingReview, action(1, "maybe"), AwaitingReview, true, false},
		{"reason", AwaitingReason, message(1, "why"), ResolvedReject, false, false},
		{"approve while awaiting reason", AwaitingReason, action(1, "approve"), AwaitingReason, true, false},
		{"empty reason", AwaitingReason, message(1, ""), AwaitingReason, false, false},
		{"action without callback", AwaitingReview, Event{ID: 1, Kind: EventAction, Data: "approve"}, ResolvedApprove, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Review{state: tt.start}
			ack, ask := r.Step(tt.ev)
			assert.Equal(t, tt.want, r.State())
			assert.Equal(t, tt.wantAck, ack)
			assert.Equal(t, tt.wantAsk, ask)
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_review", AwaitingReview.String())
	assert.Equal(t, "rejected", ResolvedReject.String())
	assert.True(t, ResolvedApprove.Resolved())
	assert.False(t, AwaitingReason.Resolved())
}
