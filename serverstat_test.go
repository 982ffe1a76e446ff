package jobsched

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ServerStat", func() {
	var (
		srv     *ServerStat
		fixed   time.Time
		restore func()
	)

	BeforeEach(func() {
		srv = newServerStat("s1", 0)
		fixed = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		orig := now
		now = func() time.Time { return fixed }
		restore = func() { now = orig }
	})

	AfterEach(func() {
		restore()
	})

	Describe("process() and record()", func() {
		It("marks a solo known-size completion as a pure calibration sample", func() {
			req := newRequest("r1", 1000)
			srv.process(req)

			now = func() time.Time { return fixed.Add(100 * time.Millisecond) }
			outcome := srv.record(req)

			Expect(outcome).To(Equal(ready))
			Expect(srv.isCalibrated()).To(BeTrue())
			rt, ok := srv.meanResponseTime()
			Expect(ok).To(BeTrue())
			Expect(rt).To(Equal(100 * time.Millisecond))
		})

		It("never calibrates from an unknown-size request", func() {
			req := newRequest("r1", unknownSize)
			srv.process(req)
			now = func() time.Time { return fixed.Add(100 * time.Millisecond) }
			srv.record(req)

			Expect(srv.isCalibrated()).To(BeFalse())
			_, ok := srv.meanResponseTime()
			Expect(ok).To(BeTrue())
		})

		It("does not calibrate from a batch of concurrent completions", func() {
			r1 := newRequest("r1", 1000)
			r2 := newRequest("r2", 2000)
			srv.process(r1)
			srv.process(r2)

			now = func() time.Time { return fixed.Add(50 * time.Millisecond) }
			outcome1 := srv.record(r1)
			Expect(outcome1).To(Equal(busy))
			Expect(srv.isCalibrated()).To(BeFalse())

			outcome2 := srv.record(r2)
			Expect(outcome2).To(Equal(ready))
			Expect(srv.isCalibrated()).To(BeFalse())
		})

		It("reports activeCount while requests are in flight", func() {
			req := newRequest("r1", 1000)
			srv.process(req)
			Expect(srv.activeCount()).To(Equal(1))
		})
	})
})
