// Package httpserver runs the notifykit HTTP surface with graceful shutdown
// driven by context cancellation.
//
// Run binds the listener, serves until ctx is done and then shuts down within
// ShutdownTimeout. Stop hooks run when shutdown starts and are used to close
// hijacked websocket connections that net/http does not track.
// HealthCheckHandler exposes a JSON readiness report over named dependency
// checks.
//
//	srv := httpserver.NewFromConfig(cfg,
//	    httpserver.WithLogger(log),
//	    httpserver.WithStopHook(registry.CloseAll),
//	)
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := srv.Run(ctx, router); err != nil {
//	    log.Error("server failed", logger.Error(err))
//	}
package httpserver
