package socks5

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"unicode/utf8"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	Version byte = 0x05

	MethodNoAuth byte = 0x00
	// MethodNoAcceptable is the RFC 1928 "no acceptable methods" selection.
	MethodNoAcceptable byte = 0xff

	CmdConnect byte = 0x01

	ATYPIPv4   byte = 0x01
	ATYPDomain byte = 0x03
	ATYPIPv6   byte = 0x04

	RepSuccess             byte = 0x00
	RepAddressNotSupported byte = 0x08
)

// Greeting is the client's method-negotiation message.
type Greeting struct {
	Version byte
	Methods []byte
}

// DecodeGreeting decodes VER, NMETHODS and exactly NMETHODS method codes.
func DecodeGreeting(b []byte) (Greeting, error) {
	if len(b) < 2 {
		return Greeting{}, fmt.Errorf("%w: %d bytes", ErrMalformedGreeting, len(b))
	}
	if b[0] != Version {
		return Greeting{}, fmt.Errorf("%w: version %#02x", ErrMalformedGreeting, b[0])
	}
	if n := int(b[1]); len(b)-2 != n {
		return Greeting{}, fmt.Errorf("%w: %d methods advertised, %d present", ErrMalformedGreeting, n, len(b)-2)
	}
	return Greeting{Version: b[0], Methods: slices.Clone(b[2:])}, nil
}

// SelectMethod picks no-auth when the client offers it, otherwise
// MethodNoAcceptable.
func SelectMethod(g Greeting) byte {
	if slices.Contains(g.Methods, MethodNoAuth) {
		return MethodNoAuth
	}
	return MethodNoAcceptable
}

// EncodeMethodReply returns the 2-byte method selection message.
func EncodeMethodReply(method byte) []byte {
	var buf bytes.Buffer
	_, _ = txsocks5.NewNegotiationReply(method).WriteTo(&buf)
	return buf.Bytes()
}

// RequestHeader is the fixed 4-byte prefix of a request.
type RequestHeader struct {
	Version     byte
	Command     byte
	Reserved    byte
	AddressType byte
}

func DecodeRequestHeader(b [4]byte) (RequestHeader, error) {
	if b[0] != Version {
		return RequestHeader{}, fmt.Errorf("%w: request version %#02x", ErrBadVersion, b[0])
	}
	return RequestHeader{Version: b[0], Command: b[1], Reserved: b[2], AddressType: b[3]}, nil
}

// Address is the destination carried by a request. Type selects which of IP
// or Name is set.
type Address struct {
	Type byte
	IP   netip.Addr
	Name string
	Port uint16
}

// Host returns the IP or domain name without the port.
func (a Address) Host() string {
	if a.Type == ATYPDomain {
		return a.Name
	}
	return a.IP.String()
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host(), strconv.Itoa(int(a.Port)))
}

// DecodeAddress reads the address payload for atyp from r, followed by the
// big-endian port.
func DecodeAddress(atyp byte, r io.Reader) (Address, error) {
	a := Address{Type: atyp}

	switch atyp {
	case ATYPIPv4:
		var b [4]byte
		if err := readFull(r, b[:], "ipv4 address"); err != nil {
			return Address{}, err
		}
		a.IP = netip.AddrFrom4(b)
	case ATYPDomain:
		var n [1]byte
		if err := readFull(r, n[:], "domain length"); err != nil {
			return Address{}, err
		}
		name := make([]byte, int(n[0]))
		if err := readFull(r, name, "domain"); err != nil {
			return Address{}, err
		}
		a.Name = string(name)
	case ATYPIPv6:
		var b [16]byte
		if err := readFull(r, b[:], "ipv6 address"); err != nil {
			return Address{}, err
		}
		a.IP = netip.AddrFrom16(b)
	default:
		return Address{}, fmt.Errorf("%w: %#02x", ErrUnsupportedAddressType, atyp)
	}

	var port [2]byte
	if err := readFull(r, port[:], "port"); err != nil {
		return Address{}, err
	}
	a.Port = binary.BigEndian.Uint16(port[:])

	// The port is consumed first so a rejected name leaves nothing unread.
	if atyp == ATYPDomain && !utf8.ValidString(a.Name) {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidEncoding, a.Name)
	}

	return a, nil
}

// EncodeConnectReply returns the 10-byte reply for rep. The bound address
// and port are always zero.
func EncodeConnectReply(rep byte) []byte {
	var buf bytes.Buffer
	_, _ = newZeroAddrReply(rep).WriteTo(&buf)
	return buf.Bytes()
}

func newZeroAddrReply(rep byte) *txsocks5.Reply {
	return txsocks5.NewReply(rep, ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
}
