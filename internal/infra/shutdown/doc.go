// Package shutdown coordinates graceful process termination.
//
// A Handler waits for SIGINT, SIGTERM or cancellation of its context,
// then runs the registered hooks newest first under a shared deadline.
//
//	h := shutdown.NewHandler(30*time.Second, logger)
//	h.OnShutdown("redis", redisServer.Shutdown)
//	err := h.Wait(ctx)
package shutdown
