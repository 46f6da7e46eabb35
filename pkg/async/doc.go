// Package async runs independent tasks concurrently and collects every
// outcome, successful or not.
//
// Async starts a function in its own goroutine and returns a *Future. Await
// blocks for the result. A panic inside the task is recovered and surfaces as
// ErrPanic so one misbehaving task never takes the process down.
//
// Settle waits for a set of futures and returns one Outcome per future in the
// order they were passed. It never short-circuits on the first error: callers
// that fan work out to several independent targets get a full report.
//
//	futures := make([]*async.Future[Result], 0, len(targets))
//	for _, t := range targets {
//	    futures = append(futures, async.Async(ctx, t, send))
//	}
//	for i, o := range async.Settle(futures...) {
//	    if o.Err != nil {
//	        log.Printf("target %d failed: %v", i, o.Err)
//	    }
//	}
package async
