package proxy

import (
	"time"

	"github.com/die-net/socks5d/internal/dialer"
	"github.com/die-net/socks5d/internal/resolver"
)

type Config struct {
	// NegotiationTimeout bounds the handshake. Zero disables it. The relay
	// that follows is never subject to a deadline.
	NegotiationTimeout time.Duration

	// ResolveTimeout bounds a domain-name lookup. Zero means the lookup is
	// bounded only by the server context.
	ResolveTimeout time.Duration

	Dialer   dialer.Dialer
	Resolver resolver.Resolver
}
