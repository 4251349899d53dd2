package scheduler

import (
	"context"
	"net"
	"time"
)

// Connectivity reports whether the network is usable right now.
type Connectivity interface {
	Available(ctx context.Context) bool
}

// DialProbe considers the network available when a TCP connection to Addr succeeds.
type DialProbe struct {
	Addr    string
	Timeout time.Duration
}

func (p DialProbe) Available(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

type AlwaysConnected struct{}

func (AlwaysConnected) Available(context.Context) bool { return true }

// ConnectivityFunc adapts a function to Connectivity.
type ConnectivityFunc func(ctx context.Context) bool

func (f ConnectivityFunc) Available(ctx context.Context) bool { return f(ctx) }
