// Package dialer provides the outbound dialing used by socks5d once a CONNECT
// request has been resolved.
//
// Dialers implement a small interface (DialContext). The default connects
// directly; a SOCKS5 upstream chains the connection through another proxy.
package dialer
