package jobsched

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// recvTimeout and idleSleep mirror the original's SO_RCVTIMEO of 100µs
// and its sleep(0.00001) yield — both effectively sub-millisecond, so
// Go's scheduler gets a real yield point instead of the original's
// accidental sleep(0) (see SPEC_FULL.md "Design notes").
const (
	recvTimeout   = 100 * time.Microsecond
	idleSleep     = 10 * time.Microsecond
	timeoutEveryN = 10
	bufferSize    = 4096
)

// ControlSocket drives a Scheduler from the newline-delimited TCP
// protocol of §6, grounded on original_source/load_balancer/
// jobScheduler.cpp's main() (raw socket read loop, SO_RCVTIMEO,
// sleep(0.00001)) translated into Go's net.Conn + deadlines.
type ControlSocket struct {
	conn      net.Conn
	sched     *Scheduler
	log       *Logger
	iteration int
	buf       []byte // single reusable 4 KiB region (§5)
}

// Dial connects to 127.0.0.1:port, reads the greeting line of server
// names, and constructs the Scheduler that will own this connection.
// A failure here is the only fatal condition the scheduler has (§7).
func Dial(port string, log *Logger) (*ControlSocket, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", port))
	if err != nil {
		return nil, errors.Wrap(err, "connect to dispatcher")
	}

	buf := make([]byte, bufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "read greeting")
	}

	names := parseGreeting(string(buf[:n]))
	return &ControlSocket{
		conn:  conn,
		sched: NewScheduler(names, log),
		log:   log,
		buf:   buf,
	}, nil
}

func parseGreeting(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Scheduler exposes the underlying Scheduler, e.g. for DebugDump on
// shutdown or the telemetry dashboard's periodic snapshot.
func (cs *ControlSocket) Scheduler() *Scheduler {
	return cs.sched
}

// Run drives the event loop of §4.4 until ctx is cancelled.
func (cs *ControlSocket) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cs.conn.SetReadDeadline(time.Now().Add(recvTimeout))
		n, err := cs.conn.Read(cs.buf)
		if n > 0 {
			cs.handleBatch(cs.buf[:n])
		} else if err != nil && !isTimeout(err) {
			if cs.log != nil {
				cs.log.Warn("control socket read failed: " + err.Error())
			}
		}

		cs.iteration++
		if cs.iteration%timeoutEveryN == 0 {
			if line := cs.sched.HandleTimeout(); line != "" {
				cs.send(line)
			}
		}

		time.Sleep(idleSleep)
	}
}

// handleBatch ingests every token before producing any assignment, so
// completions visible in a batch can release servers consumed by that
// same batch's dispatch phase (§5).
func (cs *ControlSocket) handleBatch(data []byte) {
	tokens := strings.Split(string(data), "\n")

	var count int
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if strings.Contains(tok, "F") {
			cs.sched.Complete(strings.ReplaceAll(tok, "F", ""))
		} else {
			cs.sched.Submit(tok)
		}
		count++
	}

	var out strings.Builder
	for i := 0; i < count; i++ {
		out.WriteString(cs.sched.HandleNext())
	}
	if out.Len() > 0 {
		cs.send(out.String())
	}
}

func (cs *ControlSocket) send(s string) {
	if _, err := cs.conn.Write([]byte(s)); err != nil && cs.log != nil {
		// Transport error on send: log and continue (§4.6, §7). The
		// downstream dispatcher is the authority on delivery; we never
		// retry.
		cs.log.Warn("control socket write failed: " + err.Error())
	}
}

func (cs *ControlSocket) Close() error {
	return cs.conn.Close()
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
