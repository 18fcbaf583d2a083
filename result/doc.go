// Package result provides the outcome model shared by every remote call.
//
// A [Result] is exactly one of Success, Error or Loading. Failures are
// normalized into a closed taxonomy of [Kind] values carried by [*Error]:
// network, http, parse, rate_limit, timeout and unknown.
//
// [SafeCall] is the boundary that turns a Go-style (T, error) operation into
// a Result, and [Classify] is the single function that maps arbitrary
// failures into the taxonomy:
//
//	r := result.SafeCall(ctx, func(ctx context.Context) (User, error) {
//	    return client.GetUser(ctx, id)
//	})
//	if e := r.Err(); e != nil && e.Kind == result.KindRateLimit {
//	    time.Sleep(e.RetryAfter)
//	}
package result
