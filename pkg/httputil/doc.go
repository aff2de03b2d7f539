// Package httputil provides HTTP plumbing for outbound service clients.
//
// # Retry
//
// [Retry] runs an operation with exponential backoff under a [Policy]. Only
// errors wrapped in [RetryableError] are retried, so callers decide which
// failures are transient. A Retry-After sent with a 5xx replaces the backoff
// step:
//
//	err := httputil.Retry(ctx, httputil.DefaultPolicy(), func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    defer resp.Body.Close()
//	    return httputil.CheckStatus(resp)
//	})
//
// # Status handling
//
// [CheckStatus] maps response codes onto [StatusError]: 5xx is retryable,
// everything else outside 2xx is returned as-is so that callers can inspect
// the code (for example 429 for quota limits).
package httputil
