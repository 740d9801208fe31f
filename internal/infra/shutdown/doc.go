// Package shutdown coordinates graceful process shutdown.
//
//	h := shutdown.NewHandler(10*time.Second, logger)
//	h.OnShutdown("kvserver", srv.Shutdown)
//	h.WaitForSignal(ctx)
//	err := h.Shutdown()
//
// Hooks run in reverse registration order under a shared timeout.
package shutdown
