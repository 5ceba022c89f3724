package ndns

import "github.com/miekg/dns"

// qName returns the query name from a DNS query, or "" if there is none.
func qName(q *dns.Msg) string {
	if len(q.Question) == 0 {
		return ""
	}
	return q.Question[0].Name
}

// qType returns the textual query type, e.g. "A", "NAPTR".
func qType(q *dns.Msg) string {
	if len(q.Question) == 0 {
		return ""
	}
	return dns.TypeToString[q.Question[0].Qtype]
}

// rcodeMsg builds a bare reply with the given RCODE and no answer records.
func rcodeMsg(q *dns.Msg, rcode int) *dns.Msg {
	a := new(dns.Msg)
	a.SetRcode(q, rcode)
	a.Authoritative = true
	return a
}
