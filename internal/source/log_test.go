package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvault/recur/internal/event"
)

func deleted(seq int64) event.Event {
	return event.Event{Seq: seq, Payload: event.SubscriptionDeleted{SubscriptionID: event.ID{byte(seq)}}}
}

func TestLog_NextReturnsBeyondCursor(t *testing.T) {
	l := NewLog()
	l.Append(deleted(1))
	l.Append(deleted(2))
	l.Append(deleted(3))

	ev, err := l.Next(context.Background(), event.Cursor{Seq: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), ev.Seq)

	// Replaying from an older position redelivers.
	ev, err = l.Next(context.Background(), event.Cursor{Seq: 0, SubIndex: -1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.Seq)
}

func TestLog_NextBlocksUntilAppend(t *testing.T) {
	l := NewLog()
	l.Append(deleted(1))

	got := make(chan event.Event, 1)
	go func() {
		ev, err := l.Next(context.Background(), event.Cursor{Seq: 1})
		if err == nil {
			got <- ev
		}
	}()

	select {
	case <-got:
		t.Fatal("Next returned before an event beyond the cursor existed")
	case <-time.After(20 * time.Millisecond):
	}

	l.Append(deleted(2))

	select {
	case ev := <-got:
		assert.Equal(t, int64(2), ev.Seq)
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up after append")
	}
}

func TestLog_NextHonorsContext(t *testing.T) {
	l := NewLog()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := l.Next(ctx, event.Cursor{})
		errc <- err
	}()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Next did not observe cancellation")
	}
}

func TestLog_CloseDrainsThenErrClosed(t *testing.T) {
	l := NewLog()
	l.Append(deleted(1))
	l.Append(deleted(2))
	l.Close()

	// Already-appended events still come out.
	ev, err := l.Next(context.Background(), event.Cursor{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.Seq)

	ev, err = l.Next(context.Background(), ev.Cursor())
	require.NoError(t, err)
	assert.Equal(t, int64(2), ev.Seq)

	_, err = l.Next(context.Background(), ev.Cursor())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLog_OutOfOrderAppendPanics(t *testing.T) {
	l := NewLog()
	l.Append(deleted(2))

	assert.Panics(t, func() { l.Append(deleted(1)) })
	assert.Panics(t, func() { l.Append(deleted(2)) })
}

func TestLog_Snapshot(t *testing.T) {
	l := NewLog()
	l.Append(deleted(1))
	l.Append(deleted(2))

	snap := l.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, 2, l.Len())

	// The snapshot is a copy.
	snap[0] = deleted(9)
	ev, err := l.Next(context.Background(), event.Cursor{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.Seq)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&TransientError{Err: context.DeadlineExceeded}))
	assert.False(t, IsTransient(ErrClosed))
	assert.False(t, IsTransient(nil))
}
