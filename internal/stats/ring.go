package stats

import "github.com/mExOms/sor/pkg/types"

// ring is a fixed-capacity circular buffer of routing results. Once full,
// each push evicts the oldest entry.
type ring struct {
	buf  []types.RoutingResult
	head int
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]types.RoutingResult, capacity)}
}

func (r *ring) push(v types.RoutingResult) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// items returns the retained results, oldest first.
func (r *ring) items() []types.RoutingResult {
	out := make([]types.RoutingResult, 0, r.size)
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
