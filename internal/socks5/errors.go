package socks5

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrProtocol is the root of every protocol violation. Use errors.Is to test
// for the whole class.
var ErrProtocol = errors.New("socks5 protocol error")

var (
	ErrMalformedGreeting      = fmt.Errorf("%w: malformed greeting", ErrProtocol)
	ErrBadVersion             = fmt.Errorf("%w: unsupported version", ErrProtocol)
	ErrUnsupportedAddressType = fmt.Errorf("%w: unsupported address type", ErrProtocol)
	ErrUnsupportedCommand     = fmt.Errorf("%w: unsupported command", ErrProtocol)
	ErrNoAcceptableMethod     = fmt.Errorf("%w: no acceptable authentication method", ErrProtocol)
	ErrNoAddress              = fmt.Errorf("%w: target did not resolve to any address", ErrProtocol)
)

// ErrInvalidEncoding reports a domain name that is not valid UTF-8.
var ErrInvalidEncoding = errors.New("socks5: invalid domain name encoding")

// Kind classifies a session failure for logging.
type Kind int

const (
	KindNone Kind = iota
	KindProtocol
	KindEncoding
	KindIO
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindProtocol:
		return "protocol"
	case KindEncoding:
		return "encoding"
	case KindIO:
		return "io"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Classify maps err onto a Kind. A connection that ends before a complete
// message was read is a protocol error, anything else that is not a known
// sentinel is an I/O failure.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidEncoding):
		return KindEncoding
	case errors.Is(err, ErrProtocol), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return KindProtocol
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindIO
	}
}

// readFull wraps io.ReadFull, naming the field that came up short.
func readFull(r io.Reader, b []byte, what string) error {
	if _, err := io.ReadFull(r, b); err != nil {
		return fmt.Errorf("read %s: %w", what, err)
	}
	return nil
}
