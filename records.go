package ndns

import (
	"math/rand"
	"net"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// MaxTokens caps the number of inner-separated values read out of one
// tokenize call (MAX_TOK in the original).
const MaxTokens = 64

// DefaultTTL is used when a record carries no TTL= token.
const DefaultTTL = 3600

// tokenize splits an NVS value into the tokens for one KEY, honoring the
// outer/inner separator redefinition described in §6.1: a value starting
// with "~X" uses X as its outer separator instead of '|', and an inner
// value starting with "~Y" uses Y instead of ',' for that key's own list.
func tokenize(value, key string) ([]string, bool) {
	outerSep := byte('|')
	rest := value
	if len(rest) >= 2 && rest[0] == '~' {
		outerSep = rest[1]
		rest = rest[2:]
	}

	for _, tok := range strings.Split(rest, string(outerSep)) {
		eq := strings.IndexByte(tok, '=')
		if eq < 0 {
			continue
		}
		k, v := tok[:eq], tok[eq+1:]
		if !strings.EqualFold(k, key) {
			continue
		}

		innerSep := byte(',')
		if len(v) >= 2 && v[0] == '~' {
			innerSep = v[1]
			v = v[2:]
		}
		tokens := strings.Split(v, string(innerSep))
		if len(tokens) > MaxTokens {
			tokens = tokens[:MaxTokens]
		}
		return tokens, true
	}
	return nil, false
}

// recordTTL reads TTL= out of value, defaulting to DefaultTTL.
func recordTTL(value string) uint32 {
	return ttlWithDefault(value, DefaultTTL)
}

// ttlWithDefault reads TTL= out of value, falling back to def. Referral
// synthesis uses a 24h default here (matching the original's TryMakeref,
// which reuses the 24h ENUM default rather than the 1h answer default)
// while direct answers use DefaultTTL.
func ttlWithDefault(value string, def uint32) uint32 {
	toks, ok := tokenize(value, "TTL")
	if !ok || len(toks) == 0 {
		return def
	}
	n, err := strconv.Atoi(toks[0])
	if err != nil || n < 0 {
		return def
	}
	return uint32(n)
}

// shuffle applies Fisher-Yates to present multi-valued answers in a
// different order on every response, per §4.4.
func shuffle(tokens []string) {
	rand.Shuffle(len(tokens), func(i, j int) {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	})
}

// buildRRs constructs the RR set for one QTYPE out of an NVS value, shuffled,
// for owner name (already FQDN). ok reports whether the key was present at
// all; an empty, ok=true result means the key was present but yielded no
// usable tokens (malformed addresses are dropped silently per §7). overflow
// reports a label longer than 63 bytes was seen in the value — the caller
// must answer SERVFAIL for the whole message in that case, mirroring the
// original's "Size-of--DomainLabel-->-63" emit-time guard.
func buildRRs(owner string, qtype uint16, ttl uint32, value string) (rrs []dns.RR, ok, overflow bool) {
	switch qtype {
	case dns.TypeA:
		return buildA(owner, ttl, value)
	case dns.TypeAAAA:
		return buildAAAA(owner, ttl, value)
	case dns.TypeNS:
		return buildNS(owner, ttl, value)
	case dns.TypeCNAME:
		return buildCNAME(owner, ttl, value)
	case dns.TypePTR:
		return buildPTR(owner, ttl, value)
	case dns.TypeMX:
		return buildMX(owner, ttl, value)
	case dns.TypeTXT:
		return buildTXT(owner, ttl, value)
	default:
		return nil, false, false
	}
}

func buildA(owner string, ttl uint32, value string) ([]dns.RR, bool, bool) {
	toks, ok := tokenize(value, "A")
	if !ok {
		return nil, false, false
	}
	shuffle(toks)
	var rrs []dns.RR
	for _, t := range toks {
		ip := net.ParseIP(strings.TrimSpace(t)).To4()
		if ip == nil {
			continue
		}
		rrs = append(rrs, &dns.A{
			Hdr: dns.RR_Header{Name: owner, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
			A:   ip,
		})
	}
	return rrs, true, false
}

func buildAAAA(owner string, ttl uint32, value string) ([]dns.RR, bool, bool) {
	toks, ok := tokenize(value, "AAAA")
	if !ok {
		return nil, false, false
	}
	shuffle(toks)
	var rrs []dns.RR
	for _, t := range toks {
		ip := net.ParseIP(strings.TrimSpace(t)).To16()
		if ip == nil {
			continue
		}
		rrs = append(rrs, &dns.AAAA{
			Hdr:  dns.RR_Header{Name: owner, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: ttl},
			AAAA: ip,
		})
	}
	return rrs, true, false
}

func buildNS(owner string, ttl uint32, value string) ([]dns.RR, bool, bool) {
	toks, ok := tokenize(value, "NS")
	if !ok {
		return nil, false, false
	}
	shuffle(toks)
	var rrs []dns.RR
	var overflow bool
	for _, t := range toks {
		host := dns.Fqdn(strings.TrimSpace(t))
		switch validateLabelSet(host) {
		case labelOverflow:
			overflow = true
			continue
		case labelInvalid:
			continue
		}
		rrs = append(rrs, &dns.NS{
			Hdr: dns.RR_Header{Name: owner, Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: ttl},
			Ns:  host,
		})
	}
	return rrs, true, overflow
}

func buildCNAME(owner string, ttl uint32, value string) ([]dns.RR, bool, bool) {
	toks, ok := tokenize(value, "CNAME")
	if !ok || len(toks) == 0 {
		return nil, false, false
	}
	host := dns.Fqdn(strings.TrimSpace(toks[0]))
	switch validateLabelSet(host) {
	case labelOverflow:
		return nil, true, true
	case labelInvalid:
		return nil, true, false
	}
	return []dns.RR{&dns.CNAME{
		Hdr:    dns.RR_Header{Name: owner, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: ttl},
		Target: host,
	}}, true, false
}

func buildPTR(owner string, ttl uint32, value string) ([]dns.RR, bool, bool) {
	toks, ok := tokenize(value, "PTR")
	if !ok {
		return nil, false, false
	}
	shuffle(toks)
	var rrs []dns.RR
	var overflow bool
	for _, t := range toks {
		host := dns.Fqdn(strings.TrimSpace(t))
		switch validateLabelSet(host) {
		case labelOverflow:
			overflow = true
			continue
		case labelInvalid:
			continue
		}
		rrs = append(rrs, &dns.PTR{
			Hdr: dns.RR_Header{Name: owner, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: ttl},
			Ptr: host,
		})
	}
	return rrs, true, overflow
}

func buildMX(owner string, ttl uint32, value string) ([]dns.RR, bool, bool) {
	toks, ok := tokenize(value, "MX")
	if !ok {
		return nil, false, false
	}
	shuffle(toks)
	var rrs []dns.RR
	var overflow bool
	for _, t := range toks {
		host, pref := t, uint16(1)
		if i := strings.IndexByte(t, ':'); i >= 0 {
			host = t[:i]
			if n, err := strconv.Atoi(t[i+1:]); err == nil && n >= 0 && n <= 0xffff {
				pref = uint16(n)
			}
		}
		host = dns.Fqdn(strings.TrimSpace(host))
		switch validateLabelSet(host) {
		case labelOverflow:
			overflow = true
			continue
		case labelInvalid:
			continue
		}
		rrs = append(rrs, &dns.MX{
			Hdr:        dns.RR_Header{Name: owner, Rrtype: dns.TypeMX, Class: dns.ClassINET, Ttl: ttl},
			Preference: pref,
			Mx:         host,
		})
	}
	return rrs, true, overflow
}

func buildTXT(owner string, ttl uint32, value string) ([]dns.RR, bool, bool) {
	toks, ok := tokenize(value, "TXT")
	if !ok {
		return nil, false, false
	}
	return []dns.RR{&dns.TXT{
		Hdr: dns.RR_Header{Name: owner, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: ttl},
		Txt: toks,
	}}, true, false
}

type labelVerdict uint8

const (
	labelOK labelVerdict = iota
	labelInvalid
	labelOverflow
)

// validateLabelSet reports whether every label of fqdn is non-empty and
// within the 63-byte RFC 1035 limit. A too-long label is distinguished from
// an otherwise-malformed name so the caller can answer SERVFAIL for the
// former (matching the original's emit-time guard) while simply dropping
// the record for the latter.
func validateLabelSet(fqdn string) labelVerdict {
	for _, l := range dns.SplitDomainName(fqdn) {
		switch {
		case len(l) > 63:
			return labelOverflow
		case len(l) == 0:
			return labelInvalid
		}
	}
	return labelOK
}
