package rediskv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/boxstore-go/internal/infra/tlsroots"
	"github.com/yndnr/boxstore-go/internal/infra/tlsroots/tlstest"
	"github.com/yndnr/boxstore-go/internal/server/kvserver"
	"github.com/yndnr/boxstore-go/internal/storage/memory"
	"github.com/yndnr/boxstore-go/internal/telemetry/logger"
)

func TestBackend_TLS(t *testing.T) {
	certFile, keyFile := tlstest.WriteSelfSigned(t, t.TempDir())
	discard := logger.Slog(logger.Discard())

	w, err := tlsroots.NewWatcher(certFile, keyFile, tlsroots.WithLogger(discard))
	require.NoError(t, err)

	scfg := kvserver.DefaultConfig()
	scfg.Address = "127.0.0.1:0"
	scfg.TLSConfig = w.ServerConfig()
	be := memory.New()
	srv := kvserver.New(scfg, be, discard)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = be.Close()
	})

	cfg := configFor(t, srv.Addr())
	cfg.TLS, err = tlsroots.ClientConfigFromFile(certFile, "")
	require.NoError(t, err)
	b := newTestBackend(t, cfg)

	ctx := context.Background()
	prev, err := b.Swap(ctx, "k", []byte("v"))
	require.NoError(t, err)
	assert.Nil(t, prev)

	v, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
