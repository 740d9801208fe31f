package service

import (
	"context"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/boxstore-go/internal/core/domain"
)

// PurgeResult counts what PurgeOwner removed.
type PurgeResult struct {
	Identity    bool
	OneTimeKeys int
	Sessions    int
	// SkippedSessions counts keys under the owner's prefix that may belong
	// to a longer owner id with a stored identity. They are left in place.
	SkippedSessions int
}

// PurgeOwner deletes the identity, every one-time key and every session
// record of ownerID. Session records are found with a prefix scan on
// "ses_<owner>-". A key such as ses_a-b-c also matches owner "a-b"; it is
// skipped when an identity exists for "a-b".
//
// A session checked out while the purge runs is recreated by its holder's
// checkin.
func (s *Store) PurgeOwner(ctx context.Context, ownerID string) (PurgeResult, error) {
	var res PurgeResult
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return res, err
	}
	log := s.log(ctx).With("owner", ownerID)

	// 1. Sessions
	var sessionKeys []string
	err := s.backend.Scan(ctx, domain.SessionKeyPrefixFor(ownerID), func(key string) bool {
		sessionKeys = append(sessionKeys, key)
		return true
	})
	if err != nil {
		return res, s.backendErr("scan sessions", err)
	}
	for _, key := range sessionKeys {
		foreign, err := s.claimedByLongerOwner(ctx, ownerID, key)
		if err != nil {
			return res, s.backendErr("exists identity", err)
		}
		if foreign {
			log.Warn("session key may belong to another owner, kept", "key", key)
			res.SkippedSessions++
			continue
		}
		if err := s.backend.Delete(ctx, key); err != nil {
			return res, s.backendErr("delete session", err)
		}
		res.Sessions++
	}

	// 2. One-time keys
	var otk atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(preKeyConcurrency)
	for i := 0; i <= s.lastPreKeyID; i++ {
		g.Go(func() error {
			key := domain.OneTimeKeyKey(ownerID, i)
			ok, err := s.backend.Exists(gctx, key)
			if err != nil || !ok {
				return err
			}
			if err := s.backend.Delete(gctx, key); err != nil {
				return err
			}
			otk.Add(1)
			return nil
		})
	}
	err = g.Wait()
	res.OneTimeKeys = int(otk.Load())
	if err != nil {
		return res, s.backendErr("delete one-time keys", err)
	}

	// 3. Identity
	idKey := domain.IdentityKey(ownerID)
	ok, err := s.backend.Exists(ctx, idKey)
	if err != nil {
		return res, s.backendErr("exists identity", err)
	}
	if ok {
		if err := s.backend.Delete(ctx, idKey); err != nil {
			return res, s.backendErr("delete identity", err)
		}
		res.Identity = true
	}

	log.Info("owner purged",
		"sessions", res.Sessions,
		"skipped_sessions", res.SkippedSessions,
		"one_time_keys", res.OneTimeKeys,
		"identity", res.Identity)
	return res, nil
}

// claimedByLongerOwner reports whether key, found under ownerID's session
// prefix, could be a session of an owner "<ownerID>-<x>" that has an identity.
func (s *Store) claimedByLongerOwner(ctx context.Context, ownerID, key string) (bool, error) {
	rest := strings.TrimPrefix(key, domain.SessionKeyPrefixFor(ownerID))
	for i := 1; i < len(rest); i++ {
		if rest[i] != '-' {
			continue
		}
		ok, err := s.backend.Exists(ctx, domain.IdentityKey(ownerID+"-"+rest[:i]))
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
