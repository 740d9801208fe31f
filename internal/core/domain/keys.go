package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultLastPreKeyID is the highest one-time key index scanned by default.
const DefaultLastPreKeyID = 1024

// Backend key prefixes.
const (
	SessionKeyPrefix   = "ses_"
	IdentityKeyPrefix  = "id_"
	OneTimeKeyPrefix   = "pk_"
	sessionPeerJoiner  = "-"
	oneTimeIndexJoiner = "_"
)

// SessionID names one session record: a local owner and a remote peer
// session.
type SessionID struct {
	OwnerID       string
	PeerSessionID string
}

// Validate rejects empty components.
func (s SessionID) Validate() error {
	if s.OwnerID == "" {
		return ErrInvalidArgument.WithDetails("owner id is empty")
	}
	if s.PeerSessionID == "" {
		return ErrInvalidArgument.WithDetails("peer session id is empty")
	}
	return nil
}

// Key returns the backend key, ses_<owner>-<peer>.
func (s SessionID) Key() string {
	return SessionKeyPrefix + s.OwnerID + sessionPeerJoiner + s.PeerSessionID
}

func (s SessionID) String() string {
	return s.OwnerID + "/" + s.PeerSessionID
}

// SessionKeyPrefixFor returns the prefix shared by all session keys of owner.
func SessionKeyPrefixFor(ownerID string) string {
	return SessionKeyPrefix + ownerID + sessionPeerJoiner
}

// IdentityKey returns id_<owner>.
func IdentityKey(ownerID string) string {
	return IdentityKeyPrefix + ownerID
}

// OneTimeKeyKey returns pk_<index>_<owner>.
func OneTimeKeyKey(ownerID string, index int) string {
	return OneTimeKeyPrefix + strconv.Itoa(index) + oneTimeIndexJoiner + ownerID
}

// ParseOneTimeKeyKey splits a pk_<index>_<owner> key.
func ParseOneTimeKeyKey(key string) (ownerID string, index int, err error) {
	rest, ok := strings.CutPrefix(key, OneTimeKeyPrefix)
	if !ok {
		return "", 0, fmt.Errorf("not a one-time key: %q", key)
	}
	idx, owner, ok := strings.Cut(rest, oneTimeIndexJoiner)
	if !ok || owner == "" {
		return "", 0, fmt.Errorf("malformed one-time key: %q", key)
	}
	index, err = strconv.Atoi(idx)
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("malformed one-time key index: %q", key)
	}
	return owner, index, nil
}

// ValidateOwnerID rejects an empty owner id.
func ValidateOwnerID(ownerID string) error {
	if ownerID == "" {
		return ErrInvalidArgument.WithDetails("owner id is empty")
	}
	return nil
}

// ValidatePreKeyIndex rejects indices outside [0, lastID].
func ValidatePreKeyIndex(index, lastID int) error {
	if index < 0 || index > lastID {
		return ErrInvalidArgument.WithDetails(fmt.Sprintf("one-time key index %d outside [0, %d]", index, lastID))
	}
	return nil
}

// OneTimeKey is a stored one-time pre-key.
type OneTimeKey struct {
	Index int
	Data  []byte
}
