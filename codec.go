package ndns

import (
	"encoding/binary"
	"strings"

	"github.com/miekg/dns"
)

// MaxLabels bounds the number of labels accepted in a qname (MAX_DOM).
const MaxLabels = 20

// MaxOut is the wire-size ceiling for a UDP reply (MAX_OUT).
const MaxOut = dns.MinMsgSize

// Result is the tagged outcome of handling one query: either a message to
// write back — whose Rcode alone may be the entire payload, with no
// Answer/Ns/Extra sections — or a silent drop. This replaces the mixed
// 0xDead-sentinel/RCODE return style of the original with an explicit type.
type Result struct {
	Msg  *dns.Msg
	Drop bool
}

func dropResult() Result { return Result{Drop: true} }

func rcodeResult(q *dns.Msg, rcode int) Result {
	return Result{Msg: rcodeMsg(q, rcode)}
}

// DecodeQuery validates the single question of an already-unpacked request
// and returns its lowercased, dot-stripped key and split labels (outermost
// label first, as they appear in the qname) on success. On any rule
// violation it returns a Result already carrying the right RCODE and ok=false.
func DecodeQuery(q *dns.Msg) (key string, labels []string, qtype uint16, res Result, ok bool) {
	if q.Response || q.Truncated || len(q.Answer) > 0 || len(q.Ns) > 0 || len(q.Question) == 0 {
		return "", nil, 0, rcodeResult(q, dns.RcodeFormatError), false
	}
	if q.Opcode != dns.OpcodeQuery {
		return "", nil, 0, rcodeResult(q, dns.RcodeNotImplemented), false
	}

	question := q.Question[0]
	if question.Qclass != dns.ClassINET {
		return "", nil, 0, rcodeResult(q, dns.RcodeNotImplemented), false
	}

	labels = dns.SplitDomainName(question.Name)
	if len(labels) > MaxLabels {
		return "", nil, 0, rcodeResult(q, dns.RcodeFormatError), false
	}
	for _, l := range labels {
		if len(l) > 63 {
			return "", nil, 0, rcodeResult(q, dns.RcodeFormatError), false
		}
	}

	key = strings.ToLower(strings.TrimSuffix(question.Name, "."))
	for i := range labels {
		labels[i] = strings.ToLower(labels[i])
	}
	return key, labels, question.Qtype, Result{}, true
}

// rawFormErr builds a best-effort FORMERR reply from the raw datagram when
// the packet could not even be unpacked into a *dns.Msg — it echoes the ID
// if at least the two ID bytes are present, and drops silently if they
// aren't.
func rawFormErr(buf []byte) (Result, bool) {
	if len(buf) < 2 {
		return Result{Drop: true}, false
	}
	m := new(dns.Msg)
	m.Id = binary.BigEndian.Uint16(buf[:2])
	m.Response = true
	m.Authoritative = true
	m.Rcode = dns.RcodeFormatError
	return Result{Msg: m}, true
}

// newReply starts the answer message for q: same ID/question, QR+AA set,
// RD echoed, everything else empty until the resolver fills it in.
func newReply(q *dns.Msg) *dns.Msg {
	a := new(dns.Msg)
	a.SetReply(q)
	a.Authoritative = true
	a.Compress = true
	return a
}

// appendOPT adds the bare EDNS OPT RR the original always appends on a
// NOERROR reply: root owner, UDP size MaxOut, no options.
func appendOPT(a *dns.Msg) {
	opt := new(dns.OPT)
	opt.Hdr.Name = "."
	opt.Hdr.Rrtype = dns.TypeOPT
	opt.SetUDPSize(MaxOut)
	a.Extra = append(a.Extra, opt)
}

// finalize appends the OPT record (NOERROR only) and truncates the message
// to MaxOut bytes, setting TC on overflow, mirroring §4.3's writer clamp.
func finalize(a *dns.Msg) *dns.Msg {
	if a.Rcode == dns.RcodeSuccess {
		appendOPT(a)
	}
	a.Truncate(MaxOut)
	return a
}
