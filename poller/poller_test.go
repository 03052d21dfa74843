package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// script returns statuses in order, repeating the last one.
type script struct {
	mu    sync.Mutex
	steps []func() (Status, error)
	calls int
}

func (s *script) check(ctx context.Context, id string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i]()
}

func pending() (Status, error) {
	return Status{PaymentStatus: "pending", TransactionStatus: "processing"}, nil
}

func verified() (Status, error) {
	return Status{PaymentStatus: "verified", TransactionStatus: "completed"}, nil
}

func failing() (Status, error) {
	return Status{}, errors.New("network down")
}

func waitDone(t *testing.T, p *Poller) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not finish")
	}
}

func TestStatusVerified(t *testing.T) {
	assert.True(t, Status{PaymentStatus: "verified"}.Verified())
	assert.True(t, Status{TransactionStatus: "completed"}.Verified())
	assert.False(t, Status{PaymentStatus: "paid", TransactionStatus: "processing"}.Verified())
	assert.False(t, Status{}.Verified())
}

func TestPollerStopsOnVerifiedAndNotifiesOnce(t *testing.T) {
	s := &script{steps: []func() (Status, error){pending, pending, verified}}
	var navigations atomic.Int32

	p := New("42", Config{Interval: 5 * time.Millisecond}, s.check, func(Status) {
		navigations.Add(1)
	}, nil)
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, Verified, p.Outcome())
	assert.Equal(t, 3, p.Checks())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), navigations.Load())
	assert.Equal(t, 3, p.Checks(), "no checks after verified")
}

func TestPollerChecksImmediately(t *testing.T) {
	s := &script{steps: []func() (Status, error){verified}}
	p := New("1", Config{Interval: time.Hour}, s.check, nil, nil)
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, Verified, p.Outcome())
	assert.Equal(t, 1, p.Checks())
}

func TestPollerIgnoresFailedChecks(t *testing.T) {
	s := &script{steps: []func() (Status, error){failing, failing, verified}}
	var navigations atomic.Int32

	p := New("7", Config{Interval: 5 * time.Millisecond}, s.check, func(Status) { navigations.Add(1) }, nil)
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, Verified, p.Outcome())
	assert.Equal(t, int32(1), navigations.Load())
}

func TestPollerEmptyIDNeverStarts(t *testing.T) {
	s := &script{steps: []func() (Status, error){pending}}
	p := New("", Config{Interval: time.Millisecond}, s.check, nil, nil)

	assert.ErrorIs(t, p.Start(context.Background()), ErrEmptyID)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, p.Checks())
	assert.Equal(t, Running, p.Outcome())
}

func TestPollerStopIsIdempotent(t *testing.T) {
	s := &script{steps: []func() (Status, error){pending}}
	p := New("3", Config{Interval: 5 * time.Millisecond}, s.check, nil, nil)
	require.NoError(t, p.Start(context.Background()))

	p.Stop()
	p.Stop()
	waitDone(t, p)
	assert.Equal(t, Stopped, p.Outcome())

	checks := p.Checks()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, checks, p.Checks())
}

func TestPollerStopBeforeStart(t *testing.T) {
	s := &script{steps: []func() (Status, error){pending}}
	p := New("3", Config{}, s.check, nil, nil)
	p.Stop()
	waitDone(t, p)

	assert.Equal(t, Stopped, p.Outcome())
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyStarted)
}

func TestPollerStartTwice(t *testing.T) {
	s := &script{steps: []func() (Status, error){pending}}
	p := New("3", Config{Interval: time.Hour}, s.check, nil, nil)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyStarted)
}

func TestPollerContextCancel(t *testing.T) {
	s := &script{steps: []func() (Status, error){pending}}
	ctx, cancel := context.WithCancel(context.Background())
	p := New("3", Config{Interval: 5 * time.Millisecond}, s.check, nil, nil)
	require.NoError(t, p.Start(ctx))

	cancel()
	waitDone(t, p)
	assert.Equal(t, Stopped, p.Outcome())
}

func TestPollerExpiresAtDeadline(t *testing.T) {
	s := &script{steps: []func() (Status, error){pending}}
	var expired, navigations atomic.Int32

	p := New("9", Config{
		Interval: 10 * time.Millisecond,
		Deadline: time.Now().Add(35 * time.Millisecond),
	}, s.check, func(Status) { navigations.Add(1) }, func() { expired.Add(1) })
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, Expired, p.Outcome())
	assert.Equal(t, int32(1), expired.Load())
	assert.Equal(t, int32(0), navigations.Load())
}

func TestPollerLateVerifiedWinsAtDeadline(t *testing.T) {
	// the only check that reports verified is the final one at the deadline
	var calls atomic.Int32
	check := func(ctx context.Context, id string) (Status, error) {
		if calls.Add(1) == 2 {
			return verified()
		}
		return pending()
	}
	var expired, navigations atomic.Int32

	p := New("9", Config{
		Interval: time.Hour,
		Deadline: time.Now().Add(20 * time.Millisecond),
	}, check, func(Status) { navigations.Add(1) }, func() { expired.Add(1) })
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, Verified, p.Outcome())
	assert.Equal(t, int32(1), navigations.Load())
	assert.Equal(t, int32(0), expired.Load())
}

func TestPollerPastDeadline(t *testing.T) {
	s := &script{steps: []func() (Status, error){pending}}
	p := New("9", Config{Interval: time.Hour, Deadline: time.Now().Add(-time.Minute)}, s.check, nil, nil)
	require.NoError(t, p.Start(context.Background()))
	waitDone(t, p)

	assert.Equal(t, Expired, p.Outcome())
	assert.Equal(t, 2, p.Checks())
}
