package jobsched

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("serverQueue", func() {
	var q *serverQueue

	BeforeEach(func() {
		q = newServerQueue(func(s *ServerStat) (float64, bool) {
			return s.meanPerByteRate()
		})
	})

	Describe("push() and pop()", func() {
		It("orders sampled servers ascending by key", func() {
			a := newServerStat("a", 0)
			a.perByteRate.record(5)
			b := newServerStat("b", 1)
			b.perByteRate.record(2)

			q.push(a)
			q.push(b)

			first, _ := q.pop()
			second, _ := q.pop()
			Expect(first.Name).To(Equal("b"))
			Expect(second.Name).To(Equal("a"))
		})

		It("keeps unsampled servers in insertion order", func() {
			a := newServerStat("a", 0)
			b := newServerStat("b", 1)
			c := newServerStat("c", 2)

			q.push(a)
			q.push(b)
			q.push(c)

			first, _ := q.pop()
			Expect(first.Name).To(Equal("a"))
		})

		It("places an unsampled server behind any sampled server", func() {
			unsampled := newServerStat("unsampled", 0)
			sampled := newServerStat("sampled", 1)
			sampled.perByteRate.record(10)

			q.push(unsampled)
			q.push(sampled)

			first, _ := q.pop()
			Expect(first.Name).To(Equal("sampled"))
		})

		It("breaks exact ties by insertion order", func() {
			a := newServerStat("a", 0)
			a.perByteRate.record(3)
			b := newServerStat("b", 1)
			b.perByteRate.record(3)

			q.push(a)
			q.push(b)

			first, _ := q.pop()
			Expect(first.Name).To(Equal("a"))
		})
	})

	Describe("removeByName()", func() {
		It("removes a present server and reports true", func() {
			a := newServerStat("a", 0)
			q.push(a)
			Expect(q.removeByName("a")).To(BeTrue())
			Expect(q.len()).To(Equal(0))
		})

		It("reports false for an absent server", func() {
			Expect(q.removeByName("missing")).To(BeFalse())
		})
	})
})

var _ = Describe("requestQueue", func() {
	var q requestQueue

	BeforeEach(func() {
		q = requestQueue{}
	})

	Describe("popSmallest()", func() {
		It("removes the request with the smallest size", func() {
			q.push(newRequest("a", 300))
			q.push(newRequest("b", 100))
			q.push(newRequest("c", 200))

			r, ok := q.popSmallest()
			Expect(ok).To(BeTrue())
			Expect(r.Name).To(Equal("b"))
			Expect(q.len()).To(Equal(2))
		})

		It("breaks ties by earliest position", func() {
			q.push(newRequest("a", 100))
			q.push(newRequest("b", 100))

			r, _ := q.popSmallest()
			Expect(r.Name).To(Equal("a"))
		})

		It("reports false on an empty queue", func() {
			_, ok := q.popSmallest()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("pop() and peek()", func() {
		It("behaves as FIFO", func() {
			q.push(newRequest("a", 1))
			q.push(newRequest("b", 2))

			head, _ := q.peek()
			Expect(head.Name).To(Equal("a"))

			r, _ := q.pop()
			Expect(r.Name).To(Equal("a"))
			Expect(q.len()).To(Equal(1))
		})
	})
})
