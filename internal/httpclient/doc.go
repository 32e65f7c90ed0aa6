// Package httpclient provides an HTTP client that pools one session per
// origin and retries requests that fail with a server error.
//
// # Sessions and origins
//
// An origin is the "scheme://host[:port]" prefix of a URL. The first request
// to an origin creates a Session (an *http.Client with its own transport,
// capped at the configured number of concurrent connections). Every later
// request to the same origin reuses that Session until CloseConnections is
// called.
//
// The Pool is owned by the Client that creates it. Several Clients may share
// a Pool through WithPool, in which case CloseConnections on any of them
// closes the sessions of all of them. Get-or-create and close-all hold the
// same lock, so they never interleave.
//
// # Retry policy
//
// A response with a 5xx status is treated as a response error and retried
// up to the configured number of attempts with a fixed delay in between.
// Transport errors and all other statuses are returned on the first attempt.
// When every attempt fails with a server error the returned error matches
// ErrMaxRetriesExceeded.
//
// Only idempotent methods are retried unless WithRetryNonIdempotent is set.
//
// # Usage
//
//	client, err := httpclient.New(httpclient.WithTimeout(5 * time.Second))
//	if err != nil {
//		return err
//	}
//	defer client.CloseConnections()
//
//	resp, err := client.Get(ctx, "https://example.com/")
package httpclient
