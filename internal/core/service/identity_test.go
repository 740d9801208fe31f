package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/boxstore-go/internal/core/domain"
	"github.com/yndnr/boxstore-go/internal/storage/memory"
	"github.com/yndnr/boxstore-go/internal/telemetry/logger"
)

func TestIdentity_WriteOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetIdentity(ctx, "bot1")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.PutIdentityIfAbsent(ctx, "bot1", []byte("keypair-1")))
	require.NoError(t, s.PutIdentityIfAbsent(ctx, "bot1", []byte("keypair-2")))

	v, err = s.GetIdentity(ctx, "bot1")
	require.NoError(t, err)
	assert.Equal(t, []byte("keypair-1"), v, "second write is a no-op")
}

func TestIdentity_InvalidArguments(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetIdentity(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	assert.ErrorIs(t, s.PutIdentityIfAbsent(ctx, "", []byte("k")), domain.ErrInvalidArgument)
	assert.ErrorIs(t, s.PutIdentityIfAbsent(ctx, "bot1", nil), domain.ErrInvalidArgument)
}

func TestIdentity_BackendError(t *testing.T) {
	be := memory.New()
	defer be.Close()
	boom := errors.New("timeout")
	s := NewStore(&failingBackend{Backend: be, err: boom, failOn: map[string]bool{"get": true, "exists": true}},
		WithLogger(logger.Discard()))
	ctx := context.Background()

	_, err := s.GetIdentity(ctx, "bot1")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	err = s.PutIdentityIfAbsent(ctx, "bot1", []byte("k"))
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestIdentity_LogsFingerprintNotBytes(t *testing.T) {
	var buf bytes.Buffer
	l, err := logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)
	t.Cleanup(func() { logger.SetLevel("info") })

	s, _ := newTestStore(t, WithLogger(l))
	ctx := context.Background()

	secret := []byte("very-secret-key-material")
	require.NoError(t, s.PutIdentityIfAbsent(ctx, "bot1", secret))
	_, err = s.GetIdentity(ctx, "bot1")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, fingerprint(secret))
	assert.NotContains(t, out, string(secret))
}

func TestFingerprint(t *testing.T) {
	a := fingerprint([]byte("a"))
	assert.Len(t, a, 16)
	assert.Equal(t, a, fingerprint([]byte("a")))
	assert.NotEqual(t, a, fingerprint([]byte("b")))
}
