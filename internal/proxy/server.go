package proxy

import (
	"context"
	"net"
	"strconv"

	"github.com/mprokhorov/jobsched"
)

// Server accepts CONNECT clients and hands each one off to its own
// Tunnel. When maxWorkers > 0 it bounds concurrency with a buffered
// channel the way the teacher's handleServer bounds concurrent target
// fetches with its `qu := make(chan any, ca)` semaphore; otherwise every
// accepted connection gets its own goroutine without a limit.
type Server struct {
	ctx        *Context
	port       int
	maxWorkers int
	log        *jobsched.Logger
}

// NewServer builds a Server. maxWorkers <= 0 means unbounded.
func NewServer(ctx *Context, port, maxWorkers int) *Server {
	return &Server{
		ctx:        ctx,
		port:       port,
		maxWorkers: maxWorkers,
		log:        ctx.Logger,
	}
}

// Run listens on the configured port until ctx is cancelled, spawning
// one goroutine per accepted connection.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(s.port))
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var sem chan struct{}
	if s.maxWorkers > 0 {
		sem = make(chan struct{}, s.maxWorkers)
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				if s.log != nil {
					s.log.Warn("accept failed: " + err.Error())
				}
				continue
			}
		}

		if sem != nil {
			sem <- struct{}{}
		}
		go func(c net.Conn) {
			if sem != nil {
				defer func() { <-sem }()
			}
			s.handleConn(ctx, c)
		}(conn)
	}
}

// handleConn reads the request head off conn, builds a Tunnel, and
// runs it. Any rejection has already written its response inside
// NewTunnel; this only needs to close the socket afterward.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	header, err := readHeader(conn)
	if err != nil {
		if s.log != nil {
			s.log.Warn("failed to read request: " + err.Error())
		}
		return
	}

	tun, err := NewTunnel(s.ctx, conn, header)
	if err != nil {
		if s.log != nil {
			s.log.Warn(err.Error())
		}
		return
	}

	tun.Handle(ctx)
}
