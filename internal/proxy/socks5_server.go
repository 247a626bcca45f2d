package proxy

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/die-net/socks5d/internal/socks5"
)

// SOCKS5Server accepts SOCKS5 clients and serves each one on its own
// goroutine. Nothing is shared between connections except cfg.
type SOCKS5Server struct {
	ctx context.Context
	cfg Config
	log zerolog.Logger
}

// NewSOCKS5Server returns a server whose connections live no longer than ctx.
func NewSOCKS5Server(ctx context.Context, cfg Config, log zerolog.Logger) *SOCKS5Server {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SOCKS5Server{ctx: ctx, cfg: cfg, log: log.With().Str("component", "socks5").Logger()}
}

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Serve accepts connections on ln until it is closed, at which point it
// returns nil. Other accept errors, such as running out of file descriptors,
// are logged and retried with a backoff capped at one second.
func (s *SOCKS5Server) Serve(ln net.Listener) error {
	var backoff time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept failed")

			t := time.NewTimer(backoff)
			select {
			case <-t.C:
			case <-s.ctx.Done():
				t.Stop()
				return nil
			}
			continue
		}
		backoff = 0
		go s.handleConn(c)
	}
}

func (s *SOCKS5Server) handleConn(conn net.Conn) {
	defer conn.Close()

	log := s.log.With().Stringer("remote", conn.RemoteAddr()).Logger()
	log.Info().Msg("accepted")

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("connection handler panicked")
		}
	}()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	sess := newSession(conn, &s.cfg, log)

	if s.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}
	up, err := sess.handshake(ctx)
	if err != nil {
		logFailure(log, "handshake", sess.failedIn, err)
		return
	}
	defer up.Close()
	_ = conn.SetDeadline(time.Time{})

	st, err := CopyBidirectional(ctx, conn, up)
	log.Debug().
		Stringer("target", sess.target).
		Int64("sent", st.LeftToRight).
		Int64("received", st.RightToLeft).
		Msg("relay done")
	if err != nil {
		logFailure(log, "relay", StateReplySent, err)
	}
}

func logFailure(log zerolog.Logger, phase string, state State, err error) {
	kind := socks5.Classify(err)
	ev := log.Warn()
	if kind == socks5.KindCanceled {
		ev = log.Debug()
	}
	ev.Str("phase", phase).
		Stringer("state", state).
		Stringer("kind", kind).
		Err(err).
		Msg("proxy not ok")
}
