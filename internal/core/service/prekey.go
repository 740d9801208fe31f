package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/boxstore-go/internal/core/domain"
	"github.com/yndnr/boxstore-go/internal/storage"
)

// preKeyConcurrency bounds parallel backend calls over the index range.
const preKeyConcurrency = 16

// GetAllOneTimeKeys returns the stored one-time keys of ownerID in index
// order, scanning 0..LastPreKeyID. The result is empty, not nil, when
// there are none.
//
// Deprecated: one-time pre-keys are kept for reading old state only.
func (s *Store) GetAllOneTimeKeys(ctx context.Context, ownerID string) ([]domain.OneTimeKey, error) {
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}

	found := make([][]byte, s.lastPreKeyID+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(preKeyConcurrency)
	for i := 0; i <= s.lastPreKeyID; i++ {
		g.Go(func() error {
			v, err := s.backend.Get(gctx, domain.OneTimeKeyKey(ownerID, i))
			if errors.Is(err, storage.ErrKeyNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			found[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.backendErr("get one-time keys", err)
	}

	keys := make([]domain.OneTimeKey, 0)
	for i, v := range found {
		if v != nil {
			keys = append(keys, domain.OneTimeKey{Index: i, Data: v})
		}
	}
	return keys, nil
}

// PutOneTimeKey stores data at index for ownerID, overwriting any
// previous value.
//
// Deprecated: one-time pre-keys are kept for reading old state only.
func (s *Store) PutOneTimeKey(ctx context.Context, ownerID string, index int, data []byte) error {
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return err
	}
	if err := domain.ValidatePreKeyIndex(index, s.lastPreKeyID); err != nil {
		return err
	}
	if data == nil {
		return domain.ErrInvalidArgument.WithDetails("one-time key data is nil")
	}

	if err := s.backend.Set(ctx, domain.OneTimeKeyKey(ownerID, index), data); err != nil {
		return s.backendErr("set one-time key", err)
	}
	return nil
}
