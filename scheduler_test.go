package jobsched

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Scheduler", func() {
	var (
		fixed   time.Time
		restore func()
	)

	BeforeEach(func() {
		fixed = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		orig := now
		now = func() time.Time { return fixed }
		restore = func() { now = orig }
	})

	AfterEach(func() {
		restore()
	})

	advance := func(d time.Duration) {
		fixed = fixed.Add(d)
	}

	// Scenario #1: first dispatch is deterministic — the first server
	// inserted into approximated wins.
	It("dispatches the first submitted identified request to the first-inserted server", func() {
		s := NewScheduler([]string{"s1", "s2"}, nil)
		s.Submit("a,100")
		Expect(s.HandleNext()).To(Equal("s1,a,100\n"))
	})

	// Scenario #2: a single server handles two requests sequentially,
	// releasing between them.
	It("reuses a drained server for the next queued request", func() {
		s := NewScheduler([]string{"s1"}, nil)
		s.Submit("a,100")
		Expect(s.HandleNext()).To(Equal("s1,a,100\n"))

		advance(10 * time.Millisecond)
		s.Complete("a")

		s.Submit("b,50")
		Expect(s.HandleNext()).To(Equal("s1,b,50\n"))
	})

	// Scenario #3: two uncalibrated servers and two identified requests
	// pair off smallest-first via the SRPT path, one per handle_next.
	It("pairs the smallest queued identified request on each SRPT dispatch", func() {
		s := NewScheduler([]string{"s1", "s2"}, nil)
		s.Submit("a,200")
		s.Submit("b,100")

		first := s.HandleNext()
		second := s.HandleNext()

		Expect(first).To(Equal("s1,b,100\n"))
		Expect(second).To(Equal("s2,a,200\n"))
	})

	// Scenario #4: unidentified (unknown-size) requests queue and
	// dispatch through the merge path once a server is free.
	It("dispatches unidentified requests once a server becomes free", func() {
		s := NewScheduler([]string{"s1"}, nil)
		s.Submit("a,-1")
		s.Submit("b,-1")

		Expect(s.HandleNext()).To(Equal("s1,a,-1\n"))
		Expect(s.HandleNext()).To(Equal(""))

		advance(10 * time.Millisecond)
		s.Complete("a")

		Expect(s.HandleNext()).To(Equal("s1,b,-1\n"))
	})

	// Scenario #5: a request left queued behind a busy server is forced
	// onto a server once the backoff window elapses, doubling the
	// multiplier. (With every server idle at submission time, the merge
	// path would dispatch immediately — handle_timeout only ever acts
	// on a request that is still queued, per §4.3 steps 1/3 — so this
	// exercises the mechanism with the sole server already occupied.)
	It("forces a dispatch once the backoff threshold elapses", func() {
		s := NewScheduler([]string{"s1"}, nil)
		s.Submit("x,50")
		Expect(s.HandleNext()).To(Equal("s1,x,50\n"))

		s.Submit("a,-1")
		advance(2*defaultMeanResponseTime + time.Millisecond)

		line := s.HandleTimeout()
		Expect(line).To(Equal("s1,a,-1\n"))
		Expect(s.requests["a"].Forced).To(BeTrue())
		Expect(s.multiplier).To(Equal(4))
	})

	// Scenario #6: after a server contributes a pure per-byte-rate
	// sample, the next dispatch targets it via the calibrated pool.
	It("routes the next dispatch through the calibrated pool once a server is calibrated", func() {
		s := NewScheduler([]string{"s1"}, nil)
		s.Submit("a,100")
		Expect(s.HandleNext()).To(Equal("s1,a,100\n"))

		advance(50 * time.Millisecond)
		s.Complete("a")
		Expect(s.servers["s1"].isCalibrated()).To(BeTrue())

		s.Submit("b,200")
		Expect(s.HandleNext()).To(Equal("s1,b,200\n"))
	})

	Describe("forced-completion accounting", func() {
		It("resets the multiplier and timer once every outstanding forced request completes", func() {
			s := NewScheduler([]string{"s1"}, nil)
			s.Submit("x,50")
			s.HandleNext()
			s.Submit("a,-1")

			advance(2*defaultMeanResponseTime + time.Millisecond)
			s.HandleTimeout()
			Expect(s.multiplier).To(Equal(4))
			Expect(s.outstandingForced).To(Equal(1))

			advance(time.Millisecond)
			completionTime := fixed
			s.Complete("a")

			Expect(s.multiplier).To(Equal(2))
			Expect(s.outstandingForced).To(Equal(0))
			Expect(s.timeoutTrigger).To(Equal(completionTime))
		})
	})

	Describe("Complete()", func() {
		It("is a silent no-op for an unknown request name", func() {
			s := NewScheduler([]string{"s1"}, nil)
			Expect(func() { s.Complete("ghost") }).NotTo(Panic())
		})
	})
})
