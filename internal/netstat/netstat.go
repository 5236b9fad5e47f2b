// SPDX-License-Identifier: MIT

// Package netstat reports device connectivity.
package netstat

import (
	"net"
	"sync"
	"time"
)

// Monitor is the connectivity contract consumed by the sync engine.
type Monitor interface {
	IsConnected() bool
}

// Always is a fixed-answer Monitor for tests.
type Always bool

func (a Always) IsConnected() bool { return bool(a) }

// DialProbe checks connectivity by dialing a well-known TCP endpoint. The
// result is cached for ttl so hot sync paths do not dial per call.
type DialProbe struct {
	addr    string
	timeout time.Duration
	ttl     time.Duration

	dial func(network, addr string, timeout time.Duration) (net.Conn, error)

	mu      sync.Mutex
	last    bool
	checked time.Time
}

// NewDialProbe creates a probe against addr (host:port). Zero timeout and
// ttl fall back to 3s and 10s.
func NewDialProbe(addr string, timeout, ttl time.Duration) *DialProbe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &DialProbe{
		addr:    addr,
		timeout: timeout,
		ttl:     ttl,
		dial:    net.DialTimeout,
	}
}

func (p *DialProbe) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.checked) < p.ttl {
		return p.last
	}

	conn, err := p.dial("tcp", p.addr, p.timeout)
	if err == nil {
		_ = conn.Close()
	}
	p.last = err == nil
	p.checked = time.Now()
	return p.last
}
