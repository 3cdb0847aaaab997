// Package ratelimit paces remote image downloads.
//
// Search result pages reference hundreds of images hosted on a few CDNs.
// The materializer waits on a Limiter keyed by host before each remote
// fetch, so a large batch stays polite to each host without slowing
// requests to the others.
//
// Usage:
//
//	limiter := ratelimit.PerMinute(cfg.Download.RequestsPerMinute)
//	if err := limiter.Wait(ctx, "images.example.com"); err != nil {
//	    return err // ctx cancelled
//	}
package ratelimit
