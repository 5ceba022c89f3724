package ndns

import (
	"fmt"
	"os"
	"strings"

	"github.com/miekg/dns"
)

// NVSResolver implements Resolver against a blockchain name-value store. It
// owns the DAP abuse filter, the ENUM verifier cache and the toll-free
// matcher; the allowed-TLD/local tables live in the Config it was built
// from. One NVSResolver is safe for concurrent Resolve calls only insofar
// as DAP itself is (it locks internally); Config and the sub-tables are
// read-only after construction.
type NVSResolver struct {
	id      string
	cfg     *Config
	backend NameBackend

	dap       *DAP
	verifiers *enumVerifiers
	tollfree  *tollFreeMatcher
}

// NewNVSResolver builds the resolver described by cfg, reading NVS through
// backend.
func NewNVSResolver(cfg *Config, backend NameBackend) *NVSResolver {
	return &NVSResolver{
		id:        fmt.Sprintf("nvs-%s:%d", cfg.BindAddr, cfg.Port),
		cfg:       cfg,
		backend:   backend,
		dap:       NewDAP(cfg.DAPSize, cfg.DAPThreshold),
		verifiers: newEnumVerifiers(cfg.EnumTrustIDs, backend),
		tollfree:  newTollFreeMatcher(cfg.TollFreeSources, backend, readFileString),
	}
}

func readFileString(path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}

func (r *NVSResolver) String() string { return r.id }

// DAP exposes the resolver's abuse-filter table so the server loop can
// charge it for per-IP ingress/egress heat too (§4.2: IP and domain checks
// share one table, folded through different key functions).
func (r *NVSResolver) DAP() *DAP { return r.dap }

// Resolve implements Resolver. It never returns a non-nil error for a
// malformed or disallowed query — those become RCODE replies or silent
// drops — errors are reserved for conditions the caller should log as
// unexpected.
func (r *NVSResolver) Resolve(q *dns.Msg, ci ClientInfo) (*dns.Msg, error) {
	key, labels, qtype, res, ok := DecodeQuery(q)
	if !ok {
		if res.Drop {
			return nil, nil
		}
		return finalize(res.Msg), nil
	}

	if r.backend.InitialBlockDownload() {
		return finalize(rcodeMsg(q, dns.RcodeServerFailure)), nil
	}

	owner := q.Question[0].Name
	key, labels = r.rewriteGateway(key, labels)

	if _, admit := r.dap.CheckDomain([]byte(key), 0); !admit {
		logger(r.id, q, ci).Debug("dap denied domain")
		return nil, nil
	}

	reply := newReply(q)

	if val, hit := r.localSearch(labels, key); hit {
		r.answerFrom(reply, owner, qtype, val)
		return finalize(reply), nil
	}

	if r.cfg.allowed.Len() > 0 {
		if len(labels) == 0 {
			reply.Rcode = dns.RcodeNameError
			return finalize(reply), nil
		}
		tld := labels[len(labels)-1]
		if len(labels) < 2 {
			// Dotless name: no TLD to probe at all.
			reply.Rcode = dns.RcodeNameError
			return finalize(reply), nil
		}
		entry, found := r.cfg.allowed.Lookup([]byte(tld))
		if !found {
			reply.Rcode = dns.RcodeRefused
			return finalize(reply), nil
		}
		if entry.Kind == TLDKindENUM {
			if qtype != dns.TypeNAPTR {
				reply.Rcode = dns.RcodeNameError
				return finalize(reply), nil
			}
			r.resolveENUM(reply, owner, labels, entry.EnumLen)
			return finalize(reply), nil
		}
	}

	val, referral, nxdomain := r.walkNVS(key, labels)
	if nxdomain {
		reply.Rcode = dns.RcodeNameError
		return finalize(reply), nil
	}
	if referral != nil {
		reply.Ns = referral
		return finalize(reply), nil
	}

	r.answerFrom(reply, owner, qtype, val)
	return finalize(reply), nil
}

// rewriteGateway applies the optional gateway-suffix rewrite to key before
// any lookup is attempted. Unlike the original's in-place pointer
// arithmetic over a shared domain-index array, the rewritten label list is
// simply recomputed from the rewritten key — correct regardless of how
// many dots the replacement suffix itself introduces.
func (r *NVSResolver) rewriteGateway(key string, labels []string) (string, []string) {
	if !r.cfg.gwSuffixEnabled {
		return key, labels
	}
	bareSite := strings.TrimPrefix(r.cfg.gwSuffix, ".")
	if key == bareSite {
		return "", nil
	}
	if !strings.HasSuffix(key, r.cfg.gwSuffix) {
		return key, labels
	}
	newKey := strings.TrimSuffix(key, r.cfg.gwSuffix) + r.cfg.gwReplace
	if newKey == "" {
		return "", nil
	}
	return newKey, strings.Split(newKey, ".")
}

// localSearch tries every suffix of labels (when subdomain search is
// enabled) from the TLD alone outward to the suffix just past the leftmost
// label, then the full key, matching the original's combined reverse walk plus its
// full-key local-search priority check. A hit during the suffix walk wins
// immediately (the TLD filter and NVS walk are skipped entirely); a miss
// there falls through to one more attempt against the whole key.
func (r *NVSResolver) localSearch(labels []string, key string) (string, bool) {
	if r.cfg.LocalSubdomainSearch {
		for i := len(labels) - 1; i >= 1; i-- {
			partial := strings.Join(labels[i:], ".")
			if val, ok := r.cfg.local.Lookup([]byte(partial)); ok {
				return val, true
			}
		}
	}
	return r.cfg.local.Lookup([]byte(key))
}

// walkNVS performs the NVS suffix walk described by §4.4 step 5: starting
// at the two-label suffix, query "dns:"+fqdn; a miss charges DAP and ends
// the request in NXDOMAIN. A hit at the full qname (cur==0) is the final
// answer. A hit at a shorter suffix consults the record's SD= token: if
// the next, more specific label is listed (or SD contains "*"), the walk
// extends one label deeper; otherwise it tries to synthesize a referral
// from the current record's NS= tokens, falling back to answering with
// the current record directly if it has none.
func (r *NVSResolver) walkNVS(key string, labels []string) (value string, referral []dns.RR, nxdomain bool) {
	n := len(labels)
	cur := n - 2
	if cur < 0 {
		cur = 0
	}

	var val string
	for {
		fqdn := strings.Join(labels[cur:], ".")
		v, ok, err := r.backend.GetNameValue("dns:" + fqdn)
		if err != nil || !ok {
			r.dap.CheckDomain([]byte(key), 240)
			return "", nil, true
		}
		val = v

		if cur == 0 {
			break
		}

		nextLabel := labels[cur-1]
		allowed := false
		if sdToks, hasSD := tokenize(val, "SD"); hasSD {
			for _, t := range sdToks {
				if t == "*" || t == nextLabel {
					allowed = true
					break
				}
			}
		}
		if allowed {
			cur--
			continue
		}

		cutOwner := dns.Fqdn(fqdn)
		nsRRs, hasNS, overflow := buildNS(cutOwner, ttlWithDefault(val, EnumDefaultTTL), val)
		if hasNS && !overflow && len(nsRRs) > 0 {
			return val, nsRRs, false
		}
		break
	}
	return val, nil, false
}

// answerFrom fills reply's Answer section for qtype out of value, with
// owner used as every RR's name. ANY expands to the original's fixed RR
// set; A/AAAA retries as CNAME on an empty result; any other type is a
// single direct lookup. A label overflow in any record built for the
// answer fails the whole message with SERVFAIL.
func (r *NVSResolver) answerFrom(a *dns.Msg, owner string, qtype uint16, value string) {
	ttl := recordTTL(value)

	add := func(t uint16) bool {
		rrs, _, overflow := buildRRs(owner, t, ttl, value)
		if overflow {
			a.Answer = nil
			a.Rcode = dns.RcodeServerFailure
			return false
		}
		a.Answer = append(a.Answer, rrs...)
		return true
	}

	switch qtype {
	case dns.TypeANY:
		for _, t := range []uint16{dns.TypeA, dns.TypeNS, dns.TypeCNAME, dns.TypePTR, dns.TypeMX, dns.TypeAAAA} {
			if !add(t) {
				return
			}
		}
	case dns.TypeA, dns.TypeAAAA:
		if !add(qtype) {
			return
		}
		if len(a.Answer) == 0 {
			add(dns.TypeCNAME)
		}
	default:
		add(qtype)
	}
}

// resolveENUM is the ENUM entry point reached only through the TLD filter
// for a NAPTR query against an ENUM-flagged suffix (§4.6). It extracts the
// E.164 digit string from every label but the TLD, walks sequential qno
// keys "<tld>:<number>:<qno>" until a miss, keeping only records whose
// SIG= line verifies, then falls back to the toll-free matcher if no
// signed record produced an answer. ENUM misses are never DAP-penalized.
func (r *NVSResolver) resolveENUM(reply *dns.Msg, owner string, labels []string, enumLen int) {
	if len(labels) < 2 {
		reply.Rcode = dns.RcodeNameError
		return
	}
	tld := labels[len(labels)-1]
	number := extractE164(labels[:len(labels)-1], enumLen)
	if number == "" {
		reply.Rcode = dns.RcodeNameError
		return
	}

	for qno := 0; qno <= EnumQnoMax; qno++ {
		qStr := fmt.Sprintf("%s:%s:%d", tld, number, qno)
		val, ok, err := r.backend.GetNameValue(qStr)
		if err != nil || !ok {
			break
		}
		rec := parseEnumRecord(val, r.verifiers, qStr)
		if !rec.sigOK {
			continue
		}
		for _, rule := range rec.e2u {
			reply.Answer = append(reply.Answer, buildNAPTR(owner, rec.ttl, rule))
		}
	}

	if len(reply.Answer) == 0 {
		for _, line := range r.tollfree.matchAll(number) {
			if rule, ok := parseE2ULine(line); ok {
				reply.Answer = append(reply.Answer, buildNAPTR(owner, EnumDefaultTTL, rule))
			}
		}
	}

	if len(reply.Answer) == 0 {
		reply.Rcode = dns.RcodeNameError
	}
}
