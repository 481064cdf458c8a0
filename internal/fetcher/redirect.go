package fetcher

import "net/http"

// stopRedirects is an http.Client.CheckRedirect function that never follows
// a redirect itself: returning http.ErrUseLastResponse makes Do return the
// 3xx response (Location header intact) instead of transparently fetching
// the target. The worker loop observes the redirect, normalizes Location,
// and re-enqueues it as a fresh frontier entry so the destination host gets
// its own robots/politeness check rather than inheriting the origin's.
func stopRedirects(_ *http.Request, _ []*http.Request) error {
	return http.ErrUseLastResponse
}
