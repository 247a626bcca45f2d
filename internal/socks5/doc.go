// Package socks5 holds the SOCKS5 wire format used by socks5d.
//
// It decodes the client greeting, the request header and the three address
// payloads (IPv4, domain name, IPv6), and encodes the method-selection and
// CONNECT replies. Decoding works on bytes already read from the connection;
// driving the reads is the job of the handshake in internal/proxy.
//
// Reply encoding is delegated to github.com/txthinking/socks5 so the bytes on
// the wire match what other SOCKS5 peers built on that library expect.
package socks5
