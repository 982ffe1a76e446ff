package jobsched

import "time"

// batchOutcome is returned by ServerStat.record to tell the scheduler
// whether the server has drained to zero in-flight work and may be
// reinserted into one of the two priority queues.
type batchOutcome int

const (
	busy batchOutcome = iota
	ready
)

// ServerStat holds the calibration state for one downstream server.
// Adapted from pkg/wlpb's Server (latency/requests/positive/negative
// bookkeeping) — the mutex is dropped because the scheduler that owns
// this type is single-threaded (see SPEC_FULL.md §5).
type ServerStat struct {
	Name string

	seq int // construction order, used as the priority-queue tiebreak

	inFlight         int
	completedInBatch int

	responseTime runningAverage // milliseconds, across every completion
	perByteRate  runningAverage // service_time / size, only pure samples
}

func newServerStat(name string, seq int) *ServerStat {
	return &ServerStat{Name: name, seq: seq}
}

// process is called at dispatch time: it stamps the request's start
// timestamp and marks the server one request busier.
func (s *ServerStat) process(req *Request) {
	req.dispatch(now())
	s.inFlight++
}

// record is called at completion time. It stamps the request's
// completion timestamp, folds the service time into response_time, and
// — only when this server was servicing exactly this one request in
// the batch and the request's size was known — folds service_time/size
// into per_byte_rate. It returns `ready` exactly when in_flight has
// drained back to completed_in_batch, signalling the caller may
// reinsert this server into a priority queue.
func (s *ServerStat) record(req *Request) batchOutcome {
	req.finish(now())
	s.completedInBatch++

	svc, ok := req.serviceTime()
	if ok {
		s.responseTime.record(float64(svc.Milliseconds()))

		if s.inFlight == 1 && s.completedInBatch == 1 && req.known() {
			s.perByteRate.record(svc.Seconds() * 1000 / float64(req.Size))
		}
	}

	if s.inFlight == s.completedInBatch {
		s.inFlight = 0
		s.completedInBatch = 0
		return ready
	}
	return busy
}

// isCalibrated reports whether per_byte_rate has at least one sample.
func (s *ServerStat) isCalibrated() bool {
	return s.perByteRate.valid()
}

// meanResponseTime returns the response-time mean, or ok=false when
// this server has not yet reported a sample.
func (s *ServerStat) meanResponseTime() (time.Duration, bool) {
	ms, ok := s.responseTime.query()
	if !ok {
		return 0, false
	}
	return time.Duration(ms * float64(time.Millisecond)), true
}

// meanPerByteRate returns the per-byte-rate mean, or ok=false when this
// server has never contributed a pure calibration sample.
func (s *ServerStat) meanPerByteRate() (float64, bool) {
	return s.perByteRate.query()
}

// activeCount is the server's current in-flight request count, used by
// the timeout-handler selection in handleTimeout.
func (s *ServerStat) activeCount() int {
	return s.inFlight
}

// ServerSnapshot is the exported, JSON-friendly view of a ServerStat
// used by the telemetry dashboard (internal/dashboard) — purely
// observational, never consulted by scheduling decisions.
type ServerSnapshot struct {
	Name            string  `json:"name"`
	InFlight        int     `json:"inFlight"`
	ResponseTimeMs  float64 `json:"responseTimeMs"`
	HasResponseTime bool    `json:"hasResponseTime"`
	PerByteRate     float64 `json:"perByteRate"`
	Calibrated      bool    `json:"calibrated"`
}

// Snapshot returns the exported view of this server's current state.
func (s *ServerStat) Snapshot() ServerSnapshot {
	rt, rtOk := s.meanResponseTime()
	pbr, pbrOk := s.meanPerByteRate()
	return ServerSnapshot{
		Name:            s.Name,
		InFlight:        s.inFlight,
		ResponseTimeMs:  float64(rt.Milliseconds()),
		HasResponseTime: rtOk,
		PerByteRate:     pbr,
		Calibrated:      pbrOk,
	}
}
