package proxy

import (
	"context"
	"net"
	"testing"
)

func TestListenTCPKeepAlive(t *testing.T) {
	ln, err := ListenTCP(context.Background(), "tcp", "127.0.0.1:0", ListenConfig{KeepAlive: net.KeepAliveConfig{Enable: true}})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if _, ok := ln.(*KeepAliveListener); !ok {
		t.Fatalf("got %T want *KeepAliveListener", ln)
	}

	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err == nil {
			_ = c.Close()
		}
	}()

	c, err := ln.Accept()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, ok := c.(*net.TCPConn); !ok {
		t.Fatalf("accepted %T", c)
	}
}

func TestListenTCPReusePort(t *testing.T) {
	if !ReusePortSupported {
		t.Skip("SO_REUSEPORT not supported")
	}

	cfg := ListenConfig{ReusePort: true}
	first, err := ListenTCP(context.Background(), "tcp", "127.0.0.1:0", cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	second, err := ListenTCP(context.Background(), "tcp", first.Addr().String(), cfg)
	if err != nil {
		t.Fatalf("second listener on %s: %v", first.Addr(), err)
	}
	_ = second.Close()

	if _, err := ListenTCP(context.Background(), "tcp", first.Addr().String(), ListenConfig{}); err == nil {
		t.Fatal("expected bind conflict without SO_REUSEPORT")
	}
}
