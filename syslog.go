package ndns

import (
	"fmt"

	syslog "github.com/RackSec/srslog"
	"github.com/miekg/dns"
)

// AbuseSyslog wraps a Resolver and forwards only abuse-relevant outcomes
// to syslog: a silent DAP drop, or a reply carrying SERVFAIL/REFUSED.
// Ordinary NOERROR/NXDOMAIN traffic is not logged — unlike the teacher's
// Syslog, which mirrors every query and answer, this is a narrow sink for
// the events an operator actually needs paged on.
type AbuseSyslog struct {
	id       string
	writer   *syslog.Writer
	resolver Resolver
	opt      SyslogOptions
}

var _ Resolver = &AbuseSyslog{}

// SyslogOptions configures the remote syslog endpoint.
type SyslogOptions struct {
	// Network is "udp", "tcp", or "unix". Defaults to "udp" when Address
	// is set.
	Network string

	// Address is the remote syslog address; empty dials the local daemon.
	Address string

	// Priority is a syslog.Priority value (facility | severity).
	Priority int

	// Tag is the syslog program tag.
	Tag string
}

// NewAbuseSyslog returns an AbuseSyslog wrapping resolver.
func NewAbuseSyslog(id string, resolver Resolver, opt SyslogOptions) *AbuseSyslog {
	network := opt.Network
	if network == "" && opt.Address != "" {
		network = "udp"
	}
	writer, err := syslog.Dial(network, opt.Address, syslog.Priority(opt.Priority), opt.Tag)
	if err != nil {
		logger(id, nil, ClientInfo{}).WithError(err).Error("failed to initialize syslog")
	}
	return &AbuseSyslog{id: id, writer: writer, resolver: resolver, opt: opt}
}

// Resolve passes the query through to the wrapped resolver unmodified,
// emitting a syslog line only when the outcome is a drop or an abuse-coded
// reply.
func (r *AbuseSyslog) Resolve(q *dns.Msg, ci ClientInfo) (*dns.Msg, error) {
	a, err := r.resolver.Resolve(q, ci)

	switch {
	case a == nil:
		r.emit(fmt.Sprintf("id=%s qid=%d type=drop client=%s qtype=%s qname=%s",
			r.id, q.Id, ci.SourceIP, qType(q), qName(q)))
	case a.Rcode == dns.RcodeServerFailure || a.Rcode == dns.RcodeRefused:
		r.emit(fmt.Sprintf("id=%s qid=%d type=abuse client=%s qtype=%s qname=%s rcode=%s",
			r.id, q.Id, ci.SourceIP, qType(q), qName(q), dns.RcodeToString[a.Rcode]))
	}
	return a, err
}

func (r *AbuseSyslog) emit(msg string) {
	if r.writer == nil {
		return
	}
	if _, err := r.writer.Write([]byte(msg)); err != nil {
		logger(r.id, nil, ClientInfo{}).WithError(err).Error("failed to send syslog")
	}
}

func (r *AbuseSyslog) String() string { return r.id }
