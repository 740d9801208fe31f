package service

import (
	"context"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"

	"github.com/yndnr/boxstore-go/internal/core/domain"
	"github.com/yndnr/boxstore-go/internal/storage"
)

// GetIdentity returns the identity key material of ownerID, or nil when
// none is stored.
func (s *Store) GetIdentity(ctx context.Context, ownerID string) ([]byte, error) {
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}

	v, err := s.backend.Get(ctx, domain.IdentityKey(ownerID))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.backendErr("get identity", err)
	}

	s.log(ctx).Debug("identity loaded", "owner", ownerID, "fingerprint", fingerprint(v))
	return v, nil
}

// PutIdentityIfAbsent stores data as the identity of ownerID unless one
// already exists, in which case it does nothing.
//
// The existence check and the write are two calls. Two first writers racing
// may both write; the last one wins.
func (s *Store) PutIdentityIfAbsent(ctx context.Context, ownerID string, data []byte) error {
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return err
	}
	if len(data) == 0 {
		return domain.ErrInvalidArgument.WithDetails("identity data is empty")
	}

	key := domain.IdentityKey(ownerID)
	exists, err := s.backend.Exists(ctx, key)
	if err != nil {
		return s.backendErr("exists identity", err)
	}
	if exists {
		s.log(ctx).Debug("identity already present, keeping it", "owner", ownerID)
		return nil
	}

	if err := s.backend.Set(ctx, key, data); err != nil {
		return s.backendErr("set identity", err)
	}
	s.log(ctx).Info("identity stored", "owner", ownerID, "fingerprint", fingerprint(data))
	return nil
}

// fingerprint is a short BLAKE2b digest for logs.
func fingerprint(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
