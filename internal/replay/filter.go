// Package replay remembers recently seen data-frame nonces so a frame
// captured off the wire cannot be delivered twice on the same connection.
package replay

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Filter is a bounded set of recently seen nonces, keyed by their raw
// bytes. Old entries are
// evicted least-recently-seen first. A Filter is safe for concurrent use.
type Filter struct {
	seen *lru.Cache[string, struct{}]
}

// NewFilter returns a filter remembering up to window nonces, or nil when
// window <= 0. A nil *Filter accepts everything.
func NewFilter(window int) (*Filter, error) {
	if window <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, struct{}](window)
	if err != nil {
		return nil, err
	}
	return &Filter{seen: c}, nil
}

// Check records nonce and reports whether it is new. It must only be
// called for frames that authenticated, otherwise garbage frames could
// push real nonces out of the window.
func (f *Filter) Check(nonce []byte) bool {
	if f == nil {
		return true
	}
	// ContainsOrAdd does not refresh recency, which is what we want: the
	// window is ordered by first sighting.
	found, _ := f.seen.ContainsOrAdd(string(nonce), struct{}{})
	return !found
}

// Seen reports whether nonce is already in the window without recording it.
func (f *Filter) Seen(nonce []byte) bool {
	if f == nil {
		return false
	}
	return f.seen.Contains(string(nonce))
}

// Len returns the number of remembered nonces.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return f.seen.Len()
}
