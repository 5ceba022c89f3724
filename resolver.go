package ndns

import (
	"fmt"
	"net"

	"github.com/miekg/dns"
)

// Resolver is the interface implemented by anything that can answer a
// decoded DNS query. NVSResolver is the only production implementation;
// tests and the admin tooling may use simpler stand-ins.
type Resolver interface {
	Resolve(q *dns.Msg, ci ClientInfo) (*dns.Msg, error)
	fmt.Stringer
}

// ClientInfo carries metadata about the requester that resolvers and the
// DAP filter need but that isn't part of the DNS message itself.
type ClientInfo struct {
	// Listener is the ID of the listener that received the query.
	Listener string
	// SourceIP is the address the query was received from.
	SourceIP net.IP
}
