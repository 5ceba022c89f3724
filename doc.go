/*
Package ndns implements an authoritative DNS resolver backed by a
blockchain name-value store (NVS). It answers a subset of RFC 1034/1035
record types (A, AAAA, NS, CNAME, PTR, MX, TXT) for names published as
"dns:<fqdn>" entries in the chain, supports an ENUM (RFC 6116) lookup
path with secp256k1 signature verification and revocation-list checks,
a toll-free number matcher driven by regular expressions, and a Bloom
counter abuse filter (DAP) that throttles noisy senders.

Resolver

Resolver is the single entry point: it receives a decoded query plus
client information and returns the reply message (which may carry only
an RCODE), or nil when the query is to be dropped silently. NVSResolver is the concrete
implementation of the name resolution algorithm described by the
design; it is backed by a NameBackend, the narrow interface through
which the chain/wallet layer is reached.

Server

Server runs a single-threaded UDP receive loop: one socket, one
goroutine, replies written in strict receive order. It prefers an
IPv6 dual-stack bind (IPV6_V6ONLY cleared) with an IPv4 fallback, and
runs the DAP per-IP admission/charge cycle around every datagram.
AdminListener exposes expvar metrics and a process/DAP health snapshot
over a separate plain HTTP port.

This example starts a resolver against a name backend and listens on
the standard DNS port:

	cfg, _ := ndns.NewConfig(ndns.ConfigOptions{Port: 53, AllowedTLDs: ".coin|.emc"})
	r := ndns.NewNVSResolver(cfg, backend)
	s := ndns.NewServer("0.0.0.0", 53, r)
	panic(s.Start())
*/
package ndns
