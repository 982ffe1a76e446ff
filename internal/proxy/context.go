// Package proxy implements the HTTPS CONNECT tunnelling proxy
// collaborator described in spec.md §1, §4.6 (design notes) and
// §5 (concurrency model). It is grounded on original_source's
// https_proxy/src tree (context.hpp/cpp, connection.hpp/cpp,
// blacklist.hpp/cpp, server.hpp/cpp).
package proxy

import (
	"context"
	"net"
	"sync"

	"github.com/mprokhorov/jobsched"
)

// Context is the explicit, construction-time replacement for the
// original's process-wide global struct (logger, resolver, blacklist,
// telemetry flag, executor) — see SPEC_FULL.md's "Global mutable
// context" design note. The resolver is serialized under a single
// mutex because it is not thread-safe in the original's underlying
// implementation (§5); the blacklist is read-only after construction.
type Context struct {
	Logger    *jobsched.Logger
	Blacklist *jobsched.Blacklist
	Telemetry bool

	resolverMu sync.Mutex
	resolver   *net.Resolver
}

// NewContext builds a Context. blacklist may be nil, meaning nothing
// is ever blocked.
func NewContext(logger *jobsched.Logger, blacklist *jobsched.Blacklist, telemetry bool) *Context {
	if blacklist == nil {
		blacklist = jobsched.NewBlacklist()
	}
	return &Context{
		Logger:    logger,
		Blacklist: blacklist,
		Telemetry: telemetry,
		resolver:  net.DefaultResolver,
	}
}

// Resolve looks up hostname and returns a "host:port" string suitable
// for net.Dial. The lookup is serialized exactly the way
// Connection::resolve locks ctx.resolver_mutex before calling into the
// (non-thread-safe) resolver.
func (c *Context) Resolve(ctx context.Context, hostname, port string) (string, error) {
	c.resolverMu.Lock()
	defer c.resolverMu.Unlock()

	addrs, err := c.resolver.LookupHost(ctx, hostname)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", &net.DNSError{Err: "no addresses found", Name: hostname}
	}
	return net.JoinHostPort(addrs[0], port), nil
}
