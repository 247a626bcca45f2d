// Package proxy implements the socks5d listener side: the per-connection
// SOCKS5 handshake, the byte relay that follows it, and the accept loop that
// runs each connection in isolation.
package proxy
