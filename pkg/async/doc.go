// Package async provides safe execution of fire-and-forget background tasks.
//
// SafeGo runs a function in its own goroutine with a timeout, panic recovery
// and error logging:
//
//	async.SafeGo(ctx, 5*time.Second, "cache warm", func(ctx context.Context) error {
//		return warm(ctx)
//	})
//
// Tracker does the same but remembers tasks in flight so a shutdown hook can
// wait for them:
//
//	var tr async.Tracker
//	tr.Go(ctx, 5*time.Second, "audit", record)
//	_ = tr.Wait(shutdownCtx)
package async
