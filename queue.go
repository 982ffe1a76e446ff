package jobsched

import "sort"

// serverQueue is a slice of servers re-sorted on every push and popped
// from the front, the technique balancer.go and pkg/wlpb/wlpb.go used
// for their mutex-guarded server pools (sortByDirection + bestServer)
// — kept here without the mutex since the scheduler that owns a
// serverQueue is single-threaded (see SPEC_FULL.md, "Priority-queue
// technique"). container/heap is deliberately not used: it never
// appears in this pack's teacher or sibling repos.
type serverQueue struct {
	items []*ServerStat
	key   func(*ServerStat) (float64, bool)
}

func newServerQueue(key func(*ServerStat) (float64, bool)) *serverQueue {
	return &serverQueue{key: key}
}

// push inserts s and keeps the slice ordered by key ascending. Servers
// without a sample fall back to construction order (seq), as do ties
// between two sampled servers — this is what makes "the first server
// inserted wins" (§8 scenario #1) deterministic, since servers are
// first inserted in construction order.
func (q *serverQueue) push(s *ServerStat) {
	q.items = append(q.items, s)
	sort.SliceStable(q.items, func(i, j int) bool {
		vi, oki := q.key(q.items[i])
		vj, okj := q.key(q.items[j])
		switch {
		case oki && okj:
			if vi != vj {
				return vi < vj
			}
			return q.items[i].seq < q.items[j].seq
		case oki != okj:
			return oki
		default:
			return q.items[i].seq < q.items[j].seq
		}
	})
}

// pop removes and returns the lowest-key server.
func (q *serverQueue) pop() (*ServerStat, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	s := q.items[0]
	q.items = q.items[1:]
	return s, true
}

func (q *serverQueue) peek() (*ServerStat, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

func (q *serverQueue) len() int {
	return len(q.items)
}

// removeByName removes a server by name if present, reporting whether
// it was found. Used when a forced dispatch pulls an idle server out
// of whichever priority queue currently holds it.
func (q *serverQueue) removeByName(name string) bool {
	for i, s := range q.items {
		if s.Name == name {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// requestQueue is a FIFO of requests, modeled on worker.go's
// targets []string shift/size pair.
type requestQueue struct {
	items []*Request
}

func (q *requestQueue) push(r *Request) {
	q.items = append(q.items, r)
}

func (q *requestQueue) pop() (*Request, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	r := q.items[0]
	q.items = q.items[1:]
	return r, true
}

func (q *requestQueue) peek() (*Request, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

func (q *requestQueue) len() int {
	return len(q.items)
}

// popSmallest scans left to right and removes the request with the
// smallest declared size, ties broken by position — earliest wins.
// This is the SRPT path's selection rule (§4.3, §9).
func (q *requestQueue) popSmallest() (*Request, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	best := 0
	for i := 1; i < len(q.items); i++ {
		if q.items[i].Size < q.items[best].Size {
			best = i
		}
	}
	r := q.items[best]
	q.items = append(q.items[:best], q.items[best+1:]...)
	return r, true
}
