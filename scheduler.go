package jobsched

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// defaultMeanResponseTime is used for the backoff threshold when no
// server has yet reported a response-time sample (§4.3, handle_timeout).
const defaultMeanResponseTime = 500 * time.Millisecond

// Scheduler owns the four queues, the two server priority queues, the
// in-flight map and the forced-dispatch timer described in §3. It is
// single-threaded and cooperative: every exported method must be
// called from one goroutine (see SPEC_FULL.md §5).
type Scheduler struct {
	servers map[string]*ServerStat
	order   []*ServerStat // construction order, for deterministic tiebreaks

	calibrated   *serverQueue
	approximated *serverQueue

	identified   requestQueue
	unidentified requestQueue

	inFlight map[string]*ServerStat
	requests map[string]*Request

	timeoutTrigger time.Time
	multiplier     int

	outstandingForced int
	forcedCompleted   int

	log *Logger
}

// NewScheduler builds a scheduler for the given, fixed, set of server
// names (the control socket's greeting line, §6). Every server starts
// Idle-Approximated (§4.5).
func NewScheduler(serverNames []string, log *Logger) *Scheduler {
	s := &Scheduler{
		servers:        make(map[string]*ServerStat, len(serverNames)),
		inFlight:       make(map[string]*ServerStat),
		requests:       make(map[string]*Request),
		timeoutTrigger: now(),
		multiplier:     2,
		log:            log,
	}
	s.calibrated = newServerQueue(func(st *ServerStat) (float64, bool) { return st.meanPerByteRate() })
	s.approximated = newServerQueue(func(st *ServerStat) (float64, bool) {
		rt, ok := st.meanResponseTime()
		return float64(rt), ok
	})

	for i, name := range serverNames {
		st := newServerStat(name, i)
		s.servers[name] = st
		s.order = append(s.order, st)
		s.approximated.push(st)
	}
	return s
}

// Submit parses "name,size" and enqueues a new request. Never blocks,
// never errors on a duplicate name (last writer wins — names are
// assumed unique, §4.3).
func (s *Scheduler) Submit(line string) {
	name, size, ok := parseSubmission(line)
	if !ok {
		return
	}
	req := newRequest(name, size)
	s.requests[name] = req
	if req.known() {
		s.identified.push(req)
	} else {
		s.unidentified.push(req)
	}
}

// parseSubmission parses a "name,size" token. Malformed tokens are
// reported via ok=false and dropped silently by the caller (§4.6).
func parseSubmission(line string) (name string, size int, ok bool) {
	idx := strings.LastIndex(line, ",")
	if idx < 0 {
		return "", 0, false
	}
	name = line[:idx]
	sizeStr := line[idx+1:]
	n, err := strconv.Atoi(sizeStr)
	if err != nil {
		return "", 0, false
	}
	return name, n, true
}

// Complete looks up the request and its owning server and records the
// completion. Unknown names are a silent no-op (§4.6, §7) because
// completions can race a scheduler restart.
func (s *Scheduler) Complete(name string) {
	srv, ok := s.inFlight[name]
	if !ok {
		return
	}
	req, ok := s.requests[name]
	if !ok {
		return
	}
	delete(s.inFlight, name)
	delete(s.requests, name)

	outcome := srv.record(req)

	if req.Forced {
		s.forcedCompleted++
		if s.forcedCompleted == s.outstandingForced {
			s.forcedCompleted = 0
			s.outstandingForced = 0
			s.resetTimeout()
		}
	}

	if outcome == ready {
		s.reinsert(srv)
	}
}

// reinsert returns a drained server to whichever priority queue
// matches its current calibration state (invariant §3.1).
func (s *Scheduler) reinsert(srv *ServerStat) {
	if srv.isCalibrated() {
		s.calibrated.push(srv)
	} else {
		s.approximated.push(srv)
	}
}

// HandleNext produces at most one assignment line, or "" when no
// request can currently be matched to a server (§4.3 decision table).
func (s *Scheduler) HandleNext() string {
	if s.calibrated.len() == 0 && s.approximated.len() == 0 {
		return ""
	}
	if s.identified.len() == 0 && s.unidentified.len() == 0 {
		return ""
	}

	if s.approximated.len() >= 1 && s.identified.len() > 0 {
		return s.srptDispatch()
	}
	return s.mergeDispatch()
}

// srptDispatch pairs an uncalibrated server with the smallest queued
// identified request, producing a clean calibration sample (§4.3, §9).
func (s *Scheduler) srptDispatch() string {
	srv, ok := s.approximated.pop()
	if !ok {
		return ""
	}
	req, ok := s.identified.popSmallest()
	if !ok {
		// Unreachable given the caller's guard, but never strand the server.
		s.approximated.push(srv)
		return ""
	}
	return s.assign(srv, req, false)
}

// mergeDispatch selects the best available server pool and the oldest
// available request queue and pairs their heads (§4.3).
func (s *Scheduler) mergeDispatch() string {
	srv, ok := s.selectMergeServer()
	if !ok {
		return ""
	}
	req, ok := s.selectMergeRequest()
	if !ok {
		s.reinsert(srv)
		return ""
	}
	return s.assign(srv, req, false)
}

func (s *Scheduler) selectMergeServer() (*ServerStat, bool) {
	calAvail := s.calibrated.len() > 0
	appAvail := s.approximated.len() > 0

	switch {
	case calAvail && appAvail:
		calTop, _ := s.calibrated.peek()
		appTop, _ := s.approximated.peek()
		calRT, calOk := calTop.meanResponseTime()
		appRT, appOk := appTop.meanResponseTime()
		useCal := !appOk || (calOk && calRT <= appRT)
		if useCal {
			return s.calibrated.pop()
		}
		return s.approximated.pop()
	case calAvail:
		return s.calibrated.pop()
	case appAvail:
		return s.approximated.pop()
	default:
		return nil, false
	}
}

func (s *Scheduler) selectMergeRequest() (*Request, bool) {
	identAvail := s.identified.len() > 0
	unidAvail := s.unidentified.len() > 0

	switch {
	case identAvail && unidAvail:
		identTop, _ := s.identified.peek()
		unidTop, _ := s.unidentified.peek()
		if identTop.arrivalTime() <= unidTop.arrivalTime() {
			return s.identified.pop()
		}
		return s.unidentified.pop()
	case identAvail:
		return s.identified.pop()
	case unidAvail:
		return s.unidentified.pop()
	default:
		return nil, false
	}
}

// assign dispatches req to srv and returns the wire line (§4.3).
func (s *Scheduler) assign(srv *ServerStat, req *Request, forced bool) string {
	req.Forced = forced
	srv.process(req)
	s.inFlight[req.Name] = srv
	s.requests[req.Name] = req
	if !forced {
		s.resetTimeout()
	}
	return fmt.Sprintf("%s,%s,%d\n", srv.Name, req.Name, req.Size)
}

func (s *Scheduler) resetTimeout() {
	s.timeoutTrigger = now()
	s.multiplier = 2
}

// HandleTimeout implements the bounded-backoff forced-dispatch path of
// §4.3. It produces an assignment line, or "" when no request is
// stranded long enough to justify forcing.
func (s *Scheduler) HandleTimeout() string {
	meanRT := s.meanResponseTimeAll()

	elapsed := now().Sub(s.timeoutTrigger)
	threshold := time.Duration(s.multiplier) * meanRT
	if elapsed < threshold {
		return ""
	}

	req, fromIdentified, ok := s.peekOldestRequest()
	if !ok {
		return ""
	}
	if req.age(now()) < 2*meanRT {
		return ""
	}

	if fromIdentified {
		s.identified.pop()
	} else {
		s.unidentified.pop()
	}

	srv, ok := s.chooseTimeoutHandler()
	if !ok {
		// No servers configured at all; nothing to do with the request
		// but it has already been dequeued, so requeue it at the front
		// of its origin queue rather than dropping it.
		if fromIdentified {
			s.identified.items = append([]*Request{req}, s.identified.items...)
		} else {
			s.unidentified.items = append([]*Request{req}, s.unidentified.items...)
		}
		return ""
	}

	s.calibrated.removeByName(srv.Name)
	s.approximated.removeByName(srv.Name)

	line := s.assign(srv, req, true)
	s.multiplier *= 2
	s.outstandingForced++
	return line
}

// peekOldestRequest returns the oldest head across the two request
// queues (same tie policy as the merge path: identified wins ties) and
// whether it came from the identified queue.
func (s *Scheduler) peekOldestRequest() (*Request, bool, bool) {
	identTop, identOk := s.identified.peek()
	unidTop, unidOk := s.unidentified.peek()

	switch {
	case identOk && unidOk:
		if identTop.arrivalTime() <= unidTop.arrivalTime() {
			return identTop, true, true
		}
		return unidTop, false, true
	case identOk:
		return identTop, true, true
	case unidOk:
		return unidTop, false, true
	default:
		return nil, false, false
	}
}

// meanResponseTimeAll averages every server's response-time mean,
// falling back to defaultMeanResponseTime when nothing has reported a
// sample yet (§4.3).
func (s *Scheduler) meanResponseTimeAll() time.Duration {
	var sum float64
	var count int
	for _, srv := range s.order {
		if rt, ok := srv.meanResponseTime(); ok {
			sum += float64(rt)
			count++
		}
	}
	if count == 0 {
		return defaultMeanResponseTime
	}
	return time.Duration(sum / float64(count))
}

// chooseTimeoutHandler picks the server minimising
// active_request_count × response_time, falling back to minimum
// active_request_count alone when either side being compared lacks a
// response-time sample. Ties are broken by first-seen (construction
// order), which falls out naturally from scanning s.order and only
// replacing the incumbent on a strictly better score.
func (s *Scheduler) chooseTimeoutHandler() (*ServerStat, bool) {
	var best *ServerStat
	for _, srv := range s.order {
		if best == nil || timeoutHandlerBetter(srv, best) {
			best = srv
		}
	}
	return best, best != nil
}

func timeoutHandlerBetter(a, b *ServerStat) bool {
	rtA, okA := a.meanResponseTime()
	rtB, okB := b.meanResponseTime()
	if okA && okB {
		scoreA := float64(a.activeCount()) * float64(rtA)
		scoreB := float64(b.activeCount()) * float64(rtB)
		if scoreA != scoreB {
			return scoreA < scoreB
		}
		return false // tie: incumbent (first-seen) keeps it
	}
	return a.activeCount() < b.activeCount()
}

// SchedulerSnapshot is the exported, JSON-friendly view of scheduler
// state used by the telemetry dashboard (internal/dashboard).
type SchedulerSnapshot struct {
	Multiplier        int              `json:"multiplier"`
	IdentifiedQueued  int              `json:"identifiedQueued"`
	UnidentifiedQueue int              `json:"unidentifiedQueued"`
	InFlight          int              `json:"inFlight"`
	OutstandingForced int              `json:"outstandingForced"`
	Servers           []ServerSnapshot `json:"servers"`
}

// Snapshot returns the current scheduler state for telemetry purposes.
// It never mutates anything and is safe to call between HandleNext
// calls in the same goroutine that owns the scheduler.
func (s *Scheduler) Snapshot() SchedulerSnapshot {
	snap := SchedulerSnapshot{
		Multiplier:        s.multiplier,
		IdentifiedQueued:  s.identified.len(),
		UnidentifiedQueue: s.unidentified.len(),
		InFlight:          len(s.inFlight),
		OutstandingForced: s.outstandingForced,
	}
	for _, srv := range s.order {
		snap.Servers = append(snap.Servers, srv.Snapshot())
	}
	return snap
}

// DebugDump restores original_source/load_balancer/jobScheduler.cpp's
// sendPrintAll hook as a local diagnostic: a snapshot of every
// server's calibration state, rather than a second wire command (the
// control socket's protocol is frozen by §6).
func (s *Scheduler) DebugDump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "multiplier=%d queued=%d/%d in-flight=%d\n",
		s.multiplier, s.identified.len(), s.unidentified.len(), len(s.inFlight))
	for _, srv := range s.order {
		rt, rtOk := srv.meanResponseTime()
		pbr, pbrOk := srv.meanPerByteRate()
		fmt.Fprintf(&b, "  %s in_flight=%d response_time=%v(%v) per_byte_rate=%v(%v)\n",
			srv.Name, srv.activeCount(), rt, rtOk, pbr, pbrOk)
	}
	return b.String()
}
