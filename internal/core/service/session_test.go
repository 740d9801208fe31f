package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/boxstore-go/internal/core/domain"
	"github.com/yndnr/boxstore-go/internal/storage"
	"github.com/yndnr/boxstore-go/internal/storage/memory"
	"github.com/yndnr/boxstore-go/internal/telemetry/logger"
	"github.com/yndnr/boxstore-go/internal/telemetry/metric"
)

func TestCheckout_FreshSession(t *testing.T) {
	s, be := newTestStore(t)
	ctx := context.Background()

	data, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	assert.Nil(t, data)

	// The slot now holds the lock marker.
	v, err := be.Get(ctx, "ses_bot1-deviceA")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestCheckout_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	require.NoError(t, s.Checkin(ctx, "bot1", "deviceA", []byte("state-1")))

	data, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	assert.Equal(t, []byte("state-1"), data)
	require.NoError(t, s.Checkin(ctx, "bot1", "deviceA", []byte("state-2")))

	data, err = s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	assert.Equal(t, []byte("state-2"), data)
}

func TestCheckin_NilDeletes(t *testing.T) {
	s, be := newTestStore(t)
	ctx := context.Background()

	_, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	require.NoError(t, s.Checkin(ctx, "bot1", "deviceA", []byte("state")))

	_, err = s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	require.NoError(t, s.Checkin(ctx, "bot1", "deviceA", nil))

	ok, err := be.Exists(ctx, "ses_bot1-deviceA")
	require.NoError(t, err)
	assert.False(t, ok)

	data, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	assert.Nil(t, data, "record torn down, next checkout is fresh")
}

func TestCheckin_EmptyDataRejected(t *testing.T) {
	s, be := newTestStore(t)
	ctx := context.Background()

	_, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)

	err = s.Checkin(ctx, "bot1", "deviceA", []byte{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	// Still held.
	v, err := be.Get(ctx, "ses_bot1-deviceA")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestCheckout_InvalidArguments(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Checkout(ctx, "", "deviceA")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = s.Checkout(ctx, "bot1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	err = s.Checkin(ctx, "", "deviceA", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCheckout_TimeoutDeletesRecord(t *testing.T) {
	m := newRecordingMetrics()
	s, be := newTestStore(t, WithLockMaxAttempts(5), WithMetrics(m))
	ctx := context.Background()

	// A holder that never checks in.
	_, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)

	_, err = s.Checkout(ctx, "bot1", "deviceA")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.Equal(t, "BX-LOCK-4080", domain.GetErrorCode(err))

	ok, err := be.Exists(ctx, "ses_bot1-deviceA")
	require.NoError(t, err)
	assert.False(t, ok, "abandoned record is deleted")

	data, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	assert.Nil(t, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.checkouts[metric.ResultTimeout])
	assert.Equal(t, 2, m.checkouts[metric.ResultFresh])
}

func TestCheckout_TwoCallers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// Caller A holds the fresh record.
	data, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	require.Nil(t, data)

	got := make(chan []byte, 1)
	errc := make(chan error, 1)
	go func() {
		d, err := s.Checkout(ctx, "bot1", "deviceA")
		if err != nil {
			errc <- err
			return
		}
		got <- d
	}()

	// B must wait while A holds the record.
	select {
	case d := <-got:
		t.Fatalf("second caller acquired a held record: %q", d)
	case err := <-errc:
		t.Fatalf("second caller failed: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, s.Checkin(ctx, "bot1", "deviceA", []byte("session-v1")))

	select {
	case d := <-got:
		assert.Equal(t, []byte("session-v1"), d)
	case err := <-errc:
		t.Fatalf("second caller failed: %v", err)
	case <-time.After(time.Second):
		t.Fatal("second caller never acquired the record")
	}
}

func TestCheckout_WaiterSeesTeardown(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	require.NoError(t, s.Checkin(ctx, "bot1", "deviceA", []byte("old")))
	_, err = s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)

	done := make(chan []byte, 1)
	go func() {
		d, err := s.Checkout(ctx, "bot1", "deviceA")
		if err == nil {
			done <- d
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Checkin(ctx, "bot1", "deviceA", nil))

	select {
	case d, ok := <-done:
		require.True(t, ok, "waiter failed")
		assert.Nil(t, d, "waiter acquires a fresh record after teardown")
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the record")
	}
}

func TestCheckout_MutualExclusion(t *testing.T) {
	s, _ := newTestStore(t, WithLockMaxAttempts(5000))
	ctx := context.Background()

	const workers = 16
	const rounds = 10

	var holders atomic.Int32
	var overlap atomic.Bool
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				err := s.Update(ctx, "bot1", "deviceA", func(data []byte) ([]byte, error) {
					if holders.Add(1) > 1 {
						overlap.Store(true)
					}
					defer holders.Add(-1)

					n := 0
					if data != nil {
						var err error
						n, err = strconv.Atoi(string(data))
						if err != nil {
							return nil, err
						}
					}
					return []byte(strconv.Itoa(n + 1)), nil
				})
				if err != nil {
					t.Errorf("update: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.False(t, overlap.Load(), "two holders at once")

	data, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(workers*rounds), string(data))
}

func TestCheckout_IndependentRecords(t *testing.T) {
	s, _ := newTestStore(t, WithLockMaxAttempts(3))
	ctx := context.Background()

	_, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)

	data, err := s.Checkout(ctx, "bot1", "deviceB")
	require.NoError(t, err, "a held record does not block another")
	assert.Nil(t, data)
}

func TestCheckout_ContextCanceled(t *testing.T) {
	m := newRecordingMetrics()
	s, be := newTestStore(t, WithLockRetryInterval(20*time.Millisecond), WithMetrics(m))

	_, err := s.Checkout(context.Background(), "bot1", "deviceA")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = s.Checkout(ctx, "bot1", "deviceA")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, domain.IsDomainError(err, ""))

	ok, err := be.Exists(context.Background(), "ses_bot1-deviceA")
	require.NoError(t, err)
	assert.True(t, ok, "cancellation leaves the record in place")

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.checkouts[metric.ResultCanceled])
}

func TestCheckout_BackendError(t *testing.T) {
	be := memory.New()
	defer be.Close()
	boom := errors.New("connection reset")
	m := newRecordingMetrics()
	s := NewStore(&failingBackend{Backend: be, err: boom, failOn: map[string]bool{"swap": true}},
		WithLogger(logger.Discard()), WithMetrics(m))

	_, err := s.Checkout(context.Background(), "bot1", "deviceA")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "BX-SYS-5030", domain.GetErrorCode(err))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.checkouts[metric.ResultError])
	assert.Equal(t, 1, m.backendErrors["checkout"])
}

func TestCheckin_BackendError(t *testing.T) {
	be := memory.New()
	defer be.Close()
	boom := errors.New("connection reset")
	s := NewStore(&failingBackend{Backend: be, err: boom, failOn: map[string]bool{"set": true, "delete": true}},
		WithLogger(logger.Discard()))

	err := s.Checkin(context.Background(), "bot1", "deviceA", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	err = s.Checkin(context.Background(), "bot1", "deviceA", nil)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestRecord_Persist(t *testing.T) {
	m := newRecordingMetrics()
	s, _ := newTestStore(t, WithMetrics(m))
	ctx := context.Background()

	rec, err := s.CheckoutRecord(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	assert.Nil(t, rec.Data())
	assert.Len(t, rec.CheckoutID(), 26)
	assert.Equal(t, domain.SessionID{OwnerID: "bot1", PeerSessionID: "deviceA"}, rec.ID())

	require.NoError(t, rec.Persist(ctx, []byte("v1")))
	assert.ErrorIs(t, rec.Persist(ctx, []byte("v2")), ErrRecordReleased)

	rec, err = s.CheckoutRecord(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), rec.Data())
	require.NoError(t, rec.Persist(ctx, nil))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.checkins["set"])
	assert.Equal(t, 1, m.checkins["delete"])
	assert.Equal(t, 1, m.checkouts[metric.ResultAcquired])
}

func TestUpdate_RestoresOnError(t *testing.T) {
	s, be := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, "bot1", "deviceA", func(data []byte) ([]byte, error) {
		assert.Nil(t, data)
		return []byte("v1"), nil
	}))

	boom := errors.New("ratchet failed")
	err := s.Update(ctx, "bot1", "deviceA", func(data []byte) ([]byte, error) {
		assert.Equal(t, []byte("v1"), data)
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	v, err := be.Get(ctx, "ses_bot1-deviceA")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v, "original bytes restored and record released")
}

func TestUpdate_PanicRestores(t *testing.T) {
	s, be := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Checkin(ctx, "bot1", "deviceA", []byte("v1")))

	assert.PanicsWithValue(t, "ratchet corrupted", func() {
		_ = s.Update(ctx, "bot1", "deviceA", func([]byte) ([]byte, error) {
			panic("ratchet corrupted")
		})
	})

	v, err := be.Get(ctx, "ses_bot1-deviceA")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	got, err := s.Checkout(ctx, "bot1", "deviceA")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)
	require.NoError(t, s.Checkin(ctx, "bot1", "deviceA", got))
}

func TestUpdate_FreshRecordDeletedOnError(t *testing.T) {
	s, be := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, "bot1", "deviceA", func([]byte) ([]byte, error) {
		return nil, errors.New("no")
	})
	require.Error(t, err)

	_, err = be.Get(ctx, "ses_bot1-deviceA")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestUpdate_EmptyResultRestores(t *testing.T) {
	s, be := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Checkin(ctx, "bot1", "deviceA", []byte("v1")))

	err := s.Update(ctx, "bot1", "deviceA", func([]byte) ([]byte, error) {
		return []byte{}, nil
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	v, err := be.Get(ctx, "ses_bot1-deviceA")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
}

func TestUpdate_NilResultDeletes(t *testing.T) {
	s, be := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Checkin(ctx, "bot1", "deviceA", []byte("v1")))
	require.NoError(t, s.Update(ctx, "bot1", "deviceA", func([]byte) ([]byte, error) {
		return nil, nil
	}))

	ok, err := be.Exists(ctx, "ses_bot1-deviceA")
	require.NoError(t, err)
	assert.False(t, ok)
}
