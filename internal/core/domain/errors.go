package domain

import "errors"

// ErrGiveUp is returned by the HTTP client when an attempt budget is
// exhausted, or an envelope code outside the known sentinel set is
// observed: the fetch is unrecoverable for this attempt. Every give-up
// path also wraps a *httpclient.TransportError or
// *httpclient.RateLimitError, so errors.As still recovers the cause.
var ErrGiveUp = errors.New("httpclient: exhausted retries or unrecognised response")

// ErrNoProxyAvailable is surfaced by a ProxyPool.Get call made against a
// context that was cancelled while still waiting for an available proxy.
var ErrNoProxyAvailable = errors.New("proxypool: no available proxy and context cancelled")
