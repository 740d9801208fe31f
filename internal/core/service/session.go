package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/boxstore-go/internal/core/domain"
	"github.com/yndnr/boxstore-go/internal/telemetry/logger"
	"github.com/yndnr/boxstore-go/internal/telemetry/metric"
	"github.com/yndnr/boxstore-go/pkg/swaplock"
)

// ErrRecordReleased is returned by Record.Persist after the record has
// already been checked in.
var ErrRecordReleased = errors.New("service: record already checked in")

// Record is a checked-out session record. The holder must call Persist
// exactly once. A Record is not safe for concurrent use.
type Record struct {
	store      *Store
	id         domain.SessionID
	checkoutID string
	data       []byte
	released   bool
}

// ID returns the record identifier.
func (r *Record) ID() domain.SessionID { return r.id }

// CheckoutID returns the ULID assigned to this checkout.
func (r *Record) CheckoutID() string { return r.checkoutID }

// Data returns the session bytes, nil for a fresh session.
func (r *Record) Data() []byte { return r.data }

// Persist checks the record in: non-nil data is stored and the record
// released, nil data deletes it. After a backend failure Persist may be
// retried.
func (r *Record) Persist(ctx context.Context, data []byte) error {
	if r.released {
		return ErrRecordReleased
	}
	if err := r.store.checkin(ctx, r.id, data); err != nil {
		return err
	}
	r.released = true
	return nil
}

// ============================================================================
// Checkout
// ============================================================================

// Checkout acquires the session record of (ownerID, peerSessionID) and
// returns its bytes, or nil when no session exists yet. Either way the
// caller now holds the record and must call Checkin.
//
// When the record stays held for the whole attempt budget it is deleted and
// domain.ErrLockTimeout is returned; callers start a fresh session.
func (s *Store) Checkout(ctx context.Context, ownerID, peerSessionID string) ([]byte, error) {
	rec, err := s.CheckoutRecord(ctx, ownerID, peerSessionID)
	if err != nil {
		return nil, err
	}
	return rec.Data(), nil
}

// CheckoutRecord is Checkout returning a Record handle.
func (s *Store) CheckoutRecord(ctx context.Context, ownerID, peerSessionID string) (*Record, error) {
	id := domain.SessionID{OwnerID: ownerID, PeerSessionID: peerSessionID}
	if err := id.Validate(); err != nil {
		return nil, err
	}

	checkoutID := ulid.Make().String()
	ctx = logger.WithRequestID(ctx, checkoutID)
	log := s.log(ctx).With("session", id.String())
	start := time.Now()

	res, err := s.locker.Acquire(ctx, id.Key())
	switch {
	case err == nil:
	case errors.Is(err, swaplock.ErrTimeout):
		s.metrics.ObserveCheckout(metric.ResultTimeout, s.maxAttempts, time.Since(start))
		log.Warn("session checkout timed out, record deleted",
			"attempts", s.maxAttempts,
			"waited", time.Since(start))
		return nil, domain.ErrLockTimeout.WithDetails(id.String())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.metrics.ObserveCheckout(metric.ResultCanceled, 0, time.Since(start))
		log.Debug("session checkout canceled", "error", err)
		return nil, fmt.Errorf("checkout %s: %w", id, err)
	default:
		s.metrics.ObserveCheckout(metric.ResultError, 0, time.Since(start))
		log.Error("session checkout failed", "error", err)
		return nil, s.backendErr("checkout", err)
	}

	result := metric.ResultAcquired
	if res.Fresh() {
		result = metric.ResultFresh
	}
	s.metrics.ObserveCheckout(result, res.Attempts, res.Waited)
	log.Debug("session checked out",
		"fresh", res.Fresh(),
		"attempts", res.Attempts,
		"waited", res.Waited)

	return &Record{
		store:      s,
		id:         id,
		checkoutID: checkoutID,
		data:       res.Value,
	}, nil
}

// ============================================================================
// Checkin
// ============================================================================

// Checkin stores data as the new session state and releases the record.
// Nil data deletes the record instead. Only the current holder may call it;
// this is not enforced.
//
// Zero-length data is rejected with domain.ErrInvalidArgument: it cannot be
// told apart from a held record. The caller still holds the record then.
func (s *Store) Checkin(ctx context.Context, ownerID, peerSessionID string, data []byte) error {
	id := domain.SessionID{OwnerID: ownerID, PeerSessionID: peerSessionID}
	if err := id.Validate(); err != nil {
		return err
	}
	return s.checkin(ctx, id, data)
}

func (s *Store) checkin(ctx context.Context, id domain.SessionID, data []byte) error {
	if s.locker.IsSentinel(data) {
		return domain.ErrInvalidArgument.WithDetails("empty session state for " + id.String())
	}

	op := "set"
	var err error
	if data == nil {
		op = "delete"
		err = s.backend.Delete(ctx, id.Key())
	} else {
		err = s.backend.Set(ctx, id.Key(), data)
	}
	if err != nil {
		s.log(ctx).Error("session checkin failed", "session", id.String(), "op", op, "error", err)
		return s.backendErr("checkin "+op, err)
	}

	s.metrics.ObserveCheckin(op)
	s.log(ctx).Debug("session checked in", "session", id.String(), "op", op, "size", len(data))
	return nil
}

// ============================================================================
// Update
// ============================================================================

// Update checks the record out, passes its bytes to fn and checks in what
// fn returns. When fn fails, or returns zero-length state, the original
// bytes are put back (or the record deleted when it had none) and the error
// is returned. A panic in fn also restores the record before propagating.
func (s *Store) Update(ctx context.Context, ownerID, peerSessionID string, fn func(data []byte) ([]byte, error)) error {
	rec, err := s.CheckoutRecord(ctx, ownerID, peerSessionID)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if err := rec.Persist(context.WithoutCancel(ctx), rec.Data()); err != nil {
				s.log(ctx).Error("restore session after panic", "session", rec.ID().String(), "error", err)
			}
			panic(r)
		}
	}()

	next, fnErr := fn(rec.Data())
	if fnErr == nil {
		fnErr = rec.Persist(ctx, next)
		if fnErr == nil || !errors.Is(fnErr, domain.ErrInvalidArgument) {
			return fnErr
		}
	}

	// Restore even when ctx is done so the record is not left held.
	if err := rec.Persist(context.WithoutCancel(ctx), rec.Data()); err != nil {
		return errors.Join(fnErr, err)
	}
	return fnErr
}
