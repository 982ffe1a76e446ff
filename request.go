package jobsched

import "time"

// unknownSize is the wire sentinel for "declared size absent".
const unknownSize = -1

// Request is a single job submitted over the control socket.
type Request struct {
	Name   string
	Size   int // unknownSize when the caller does not know it
	Forced bool

	Arrival  time.Time
	Start    time.Time
	Complete time.Time
}

// newRequest builds a Request stamped with its arrival time.
func newRequest(name string, size int) *Request {
	return &Request{Name: name, Size: size, Arrival: now()}
}

// known reports whether the request declared a usable size.
func (r *Request) known() bool {
	return r.Size > 0
}

// arrivalTime returns the arrival timestamp in millisecond epoch ticks,
// the unit §4.2 specifies for inter-request ordering.
func (r *Request) arrivalTime() int64 {
	return r.Arrival.UnixMilli()
}

// dispatch stamps the start timestamp.
func (r *Request) dispatch(t time.Time) {
	r.Start = t
}

// finish stamps the completion timestamp.
func (r *Request) finish(t time.Time) {
	r.Complete = t
}

// serviceTime returns the duration between dispatch and completion, and
// whether both stamps are set (otherwise the sample is invalid).
func (r *Request) serviceTime() (time.Duration, bool) {
	if r.Start.IsZero() || r.Complete.IsZero() {
		return 0, false
	}
	return r.Complete.Sub(r.Start), true
}

// age returns how long the request has been alive relative to t.
func (r *Request) age(t time.Time) time.Duration {
	return t.Sub(r.Arrival)
}

// now is overridable in tests so fixed schedules are reproducible.
var now = time.Now
