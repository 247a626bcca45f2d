package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"

	"github.com/rs/zerolog"

	"github.com/die-net/socks5d/internal/socks5"
)

// State is the position of a session in the SOCKS5 handshake.
type State int

const (
	StateAwaitingGreeting State = iota
	StateNegotiatingMethod
	StateAwaitingRequest
	StateResolvingTarget
	StateConnecting
	StateReplySent
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingGreeting:
		return "awaiting greeting"
	case StateNegotiatingMethod:
		return "negotiating method"
	case StateAwaitingRequest:
		return "awaiting request"
	case StateResolvingTarget:
		return "resolving target"
	case StateConnecting:
		return "connecting"
	case StateReplySent:
		return "reply sent"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// session drives one client connection from greeting to CONNECT reply. All
// reads and writes on conn happen in sequence on the owning goroutine.
type session struct {
	conn net.Conn
	cfg  *Config
	log  zerolog.Logger

	state State
	// failedIn is the state the session was in when it moved to StateFailed.
	failedIn State
	target   netip.AddrPort
}

func newSession(conn net.Conn, cfg *Config, log zerolog.Logger) *session {
	return &session{conn: conn, cfg: cfg, log: log, state: StateAwaitingGreeting}
}

func (s *session) fail(err error) error {
	s.failedIn = s.state
	s.state = StateFailed
	return fmt.Errorf("%s: %w", s.failedIn, err)
}

// handshake runs the state machine to completion. On success it returns the
// connected target and the session is in StateReplySent.
func (s *session) handshake(ctx context.Context) (net.Conn, error) {
	var buf [2 + 255]byte

	// AwaitingGreeting: VER NMETHODS.
	if _, err := io.ReadFull(s.conn, buf[:2]); err != nil {
		return nil, s.fail(fmt.Errorf("read greeting: %w", err))
	}
	if buf[0] != socks5.Version {
		return nil, s.fail(fmt.Errorf("%w: version %#02x", socks5.ErrMalformedGreeting, buf[0]))
	}
	s.state = StateNegotiatingMethod

	n := int(buf[1])
	if _, err := io.ReadFull(s.conn, buf[2:2+n]); err != nil {
		return nil, s.fail(fmt.Errorf("read methods: %w", err))
	}
	g, err := socks5.DecodeGreeting(buf[:2+n])
	if err != nil {
		return nil, s.fail(err)
	}
	method := socks5.SelectMethod(g)
	if _, err := s.conn.Write(socks5.EncodeMethodReply(method)); err != nil {
		return nil, s.fail(fmt.Errorf("write method reply: %w", err))
	}
	if method == socks5.MethodNoAcceptable {
		return nil, s.fail(fmt.Errorf("%w: offered %#v", socks5.ErrNoAcceptableMethod, g.Methods))
	}
	s.log.Trace().Msg("protocol ok")
	s.state = StateAwaitingRequest

	var hdr [4]byte
	if _, err := io.ReadFull(s.conn, hdr[:]); err != nil {
		return nil, s.fail(fmt.Errorf("read request header: %w", err))
	}
	req, err := socks5.DecodeRequestHeader(hdr)
	if err != nil {
		return nil, s.fail(err)
	}
	s.state = StateResolvingTarget

	addr, err := socks5.DecodeAddress(req.AddressType, s.conn)
	if err != nil {
		return nil, s.fail(err)
	}
	target, err := s.resolve(ctx, addr)
	if err != nil {
		_, _ = s.conn.Write(socks5.EncodeConnectReply(socks5.RepAddressNotSupported))
		return nil, s.fail(err)
	}
	s.target = target
	s.state = StateConnecting

	// Anything but CONNECT is dropped without a reply.
	if req.Command != socks5.CmdConnect {
		return nil, s.fail(fmt.Errorf("%w: %#02x", socks5.ErrUnsupportedCommand, req.Command))
	}

	up, err := s.cfg.Dialer.DialContext(ctx, "tcp", target.String())
	if err != nil {
		return nil, s.fail(err)
	}
	if _, err := s.conn.Write(socks5.EncodeConnectReply(socks5.RepSuccess)); err != nil {
		_ = up.Close()
		return nil, s.fail(fmt.Errorf("write reply: %w", err))
	}
	s.state = StateReplySent
	s.log.Trace().Stringer("target", target).Stringer("request", addr).Msg("connected")

	return up, nil
}

// resolve turns addr into a single socket address. A domain name resolves to
// the first address returned by the resolver; later candidates are not tried.
func (s *session) resolve(ctx context.Context, addr socks5.Address) (netip.AddrPort, error) {
	if addr.Type != socks5.ATYPDomain {
		return netip.AddrPortFrom(addr.IP, addr.Port), nil
	}

	if s.cfg.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ResolveTimeout)
		defer cancel()
	}
	ips, err := s.cfg.Resolver.LookupNetIP(ctx, addr.Name)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("resolve %s: %w", addr.Name, err)
	}
	if len(ips) == 0 {
		return netip.AddrPort{}, fmt.Errorf("%w: %s", socks5.ErrNoAddress, addr.Name)
	}
	return netip.AddrPortFrom(ips[0], addr.Port), nil
}
