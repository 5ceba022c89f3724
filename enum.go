package ndns

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/miekg/dns"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // Bitcoin-style key IDs are RIPEMD160(SHA256(pubkey))
)

// enumMessageMagic is prepended to every signed ENUM query string before
// hashing, the same domain-separation convention Bitcoin-family signed
// messages use.
const enumMessageMagic = "Emercoin Signed Message:\n"

// EnumDefaultTTL is used for ENUM answers carrying no TTL= line (24h,
// distinct from the shorter DNS-record DefaultTTL).
const EnumDefaultTTL = 24 * 3600

// EnumQnoMax bounds the sequential qno query loop so a pathological chain
// state can't turn one ENUM lookup into an unbounded number of NVS reads.
const EnumQnoMax = 32767

// verifierState tracks whether a trust ID's key material has been fetched.
type verifierState uint8

const (
	verifierUnloaded verifierState = iota
	verifierLoaded
	verifierBlocked
)

type srlTemplate struct {
	template string
	mask     uint32
}

var srlConversionRe = regexp.MustCompile(`^[^%]*%0?[0-9]*[diouxX][^%]*$`)

// parseSRLTemplate parses "nbits|template" out of an SRL= line value. A
// template with no '%' at all is accepted as a constant bucket key (nbits
// forced to 0, mirroring the original's "don't need nbits for no-bucket
// srl_tpl" branch).
func parseSRLTemplate(raw string) (*srlTemplate, error) {
	i := strings.IndexByte(raw, '|')
	if i < 0 {
		return nil, fmt.Errorf("srl template: missing '|' in %q", raw)
	}
	nbits, err := strconv.Atoi(strings.TrimSpace(raw[:i]))
	if err != nil || nbits < 0 {
		nbits = 0
	}
	if nbits > 30 {
		nbits = 30
	}
	tpl := raw[i+1:]
	if tpl == "" {
		return nil, nil
	}
	if p := strings.IndexByte(tpl, '%'); p >= 0 {
		if !srlConversionRe.MatchString(tpl) {
			return nil, fmt.Errorf("srl template: invalid conversion in %q", tpl)
		}
		// Go's fmt has no %i or %u; render them as %d.
		j := p + 1
		for tpl[j] >= '0' && tpl[j] <= '9' {
			j++
		}
		if tpl[j] == 'i' || tpl[j] == 'u' {
			tpl = tpl[:j] + "d" + tpl[j+1:]
		}
	} else {
		nbits = 0
	}
	return &srlTemplate{template: tpl, mask: (uint32(1) << nbits) - 1}, nil
}

type verifier struct {
	state verifierState
	keyID []byte
	srl   *srlTemplate
}

// enumVerifiers lazily loads and caches per-trust-ID signing keys.
type enumVerifiers struct {
	mu      sync.Mutex
	allowed map[string]bool
	loaded  map[string]*verifier
	backend NameBackend
}

func newEnumVerifiers(trustIDs []string, backend NameBackend) *enumVerifiers {
	allowed := make(map[string]bool, len(trustIDs))
	for _, id := range trustIDs {
		allowed[id] = true
	}
	return &enumVerifiers{allowed: allowed, loaded: map[string]*verifier{}, backend: backend}
}

func (e *enumVerifiers) resolve(trustID string) *verifier {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v, ok := e.loaded[trustID]; ok {
		return v
	}
	if len(e.allowed) > 0 && !e.allowed[trustID] {
		v := &verifier{state: verifierBlocked}
		e.loaded[trustID] = v
		return v
	}

	rec, ok, err := e.backend.ResolveVerifier(trustID)
	if err != nil || !ok || len(rec.KeyID) == 0 {
		v := &verifier{state: verifierBlocked}
		e.loaded[trustID] = v
		return v
	}

	v := &verifier{state: verifierLoaded, keyID: rec.KeyID}
	if i := strings.Index(rec.Value, "SRL="); i >= 0 {
		raw := rec.Value[i+len("SRL="):]
		if j := strings.IndexAny(raw, "\r\n"); j >= 0 {
			raw = raw[:j]
		}
		if tpl, err := parseSRLTemplate(raw); err == nil {
			v.srl = tpl
		}
	}
	e.loaded[trustID] = v
	return v
}

// enumMessageHash reproduces the Bitcoin-style signed-message hash: the
// double-SHA256 of two length-prefixed strings, the fixed magic and the
// query string.
func enumMessageHash(qStr string) [32]byte {
	var buf bytes.Buffer
	writeVarString(&buf, enumMessageMagic)
	writeVarString(&buf, qStr)
	first := sha256.Sum256(buf.Bytes())
	return sha256.Sum256(first[:])
}

func writeVarString(buf *bytes.Buffer, s string) {
	writeVarInt(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeVarInt(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		_ = binary.Write(buf, binary.LittleEndian, uint16(n))
	case n <= 0xffffffff:
		buf.WriteByte(0xfe)
		_ = binary.Write(buf, binary.LittleEndian, uint32(n))
	default:
		buf.WriteByte(0xff)
		_ = binary.Write(buf, binary.LittleEndian, n)
	}
}

func keyIDOf(pub []byte) []byte {
	sha := sha256.Sum256(pub)
	h := ripemd160.New()
	h.Write(sha[:])
	return h.Sum(nil)
}

// checkEnumSig verifies one "trust_id|base64sig" SIG= payload against q_str,
// including the SRL bucket check, and reports whether the record may be
// answered.
func checkEnumSig(verifiers *enumVerifiers, sigValue, qStr string) bool {
	i := strings.IndexByte(sigValue, '|')
	if i < 0 {
		return false
	}
	trustID := strings.TrimSpace(sigValue[:i])
	sigB64 := strings.TrimSpace(sigValue[i+1:])

	v := verifiers.resolve(trustID)
	if v.state != verifierLoaded {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil || len(sig) != 65 {
		return false
	}

	hash := enumMessageHash(qStr)
	pub, _, err := ecdsa.RecoverCompact(sig, hash[:])
	if err != nil {
		return false
	}
	id := keyIDOf(pub.SerializeCompressed())
	if !bytes.Equal(id, v.keyID) {
		return false
	}

	if v.srl == nil {
		return true
	}

	h := uint32(0x5555)
	for i := 0; i < len(qStr); i++ {
		h += (h << 5) + uint32(qStr[i])
	}
	srlKey := v.srl.template
	if strings.IndexByte(srlKey, '%') >= 0 {
		srlKey = fmt.Sprintf(v.srl.template, h&v.srl.mask)
	}

	val, ok, err := verifiers.backend.GetNameValue(srlKey)
	if err != nil || !ok {
		return true // unable to fetch SRL: treated as absent
	}
	return !strings.Contains(val, qStr)
}

// classifyEnumLine dispatches a line of an ENUM NVS record by its
// case-insensitive 3-byte prefix, mirroring the original's ENC3 macro.
type enumLineKind uint8

const (
	enumLineOther enumLineKind = iota
	enumLineE2U
	enumLineTTL
	enumLineSIG
)

func classifyEnumLine(line string) enumLineKind {
	if len(line) < 3 {
		return enumLineOther
	}
	switch strings.ToLower(line[:3]) {
	case "e2u":
		return enumLineE2U
	case "ttl":
		return enumLineTTL
	case "sig":
		return enumLineSIG
	default:
		return enumLineOther
	}
}

type e2uRule struct {
	service string
	order   uint16
	pref    uint16
	regexp  string
}

// parseE2ULine parses "E2U<svc>=<ord>|<pref>|<regexp>".
func parseE2ULine(line string) (e2uRule, bool) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 || eq < 3 {
		return e2uRule{}, false
	}
	svc := strings.TrimSpace(line[3:eq])
	parts := strings.SplitN(line[eq+1:], "|", 3)
	if len(parts) != 3 {
		return e2uRule{}, false
	}
	ord, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	pref, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || ord < 0 || pref < 0 || ord > 0xffff || pref > 0xffff {
		return e2uRule{}, false
	}
	return e2uRule{service: svc, order: uint16(ord), pref: uint16(pref), regexp: parts[2]}, true
}

func buildNAPTR(owner string, ttl uint32, rule e2uRule) dns.RR {
	return &dns.NAPTR{
		Hdr:         dns.RR_Header{Name: owner, Rrtype: dns.TypeNAPTR, Class: dns.ClassINET, Ttl: ttl},
		Order:       rule.order,
		Preference:  rule.pref,
		Flags:       "u",
		Service:     "E2U" + rule.service,
		Regexp:      rule.regexp,
		Replacement: ".",
	}
}

// enumRecord is one parsed "<tld>:<number>:<qno>" NVS hit.
type enumRecord struct {
	e2u   []e2uRule
	ttl   uint32
	sigOK bool
}

func parseEnumRecord(value string, verifiers *enumVerifiers, qStr string) enumRecord {
	rec := enumRecord{ttl: EnumDefaultTTL}
	for _, line := range strings.Split(value, "\r\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch classifyEnumLine(line) {
		case enumLineE2U:
			if rule, ok := parseE2ULine(line); ok {
				rec.e2u = append(rec.e2u, rule)
			}
		case enumLineTTL:
			if eq := strings.IndexByte(line, '='); eq >= 0 {
				if n, err := strconv.Atoi(strings.TrimSpace(line[eq+1:])); err == nil && n >= 0 {
					rec.ttl = uint32(n)
				}
			}
		case enumLineSIG:
			if rec.sigOK {
				continue
			}
			if eq := strings.IndexByte(line, '='); eq >= 0 {
				rec.sigOK = checkEnumSig(verifiers, line[eq+1:], qStr)
			}
		}
	}
	return rec
}

// extractE164 walks labels right-to-left, keeping decimal digits only,
// until maxLen digits have been collected (maxLen<=0 means unbounded).
func extractE164(labels []string, maxLen int) string {
	var digits []byte
	for i := len(labels) - 1; i >= 0; i-- {
		label := labels[i]
		for j := len(label) - 1; j >= 0; j-- {
			c := label[j]
			if c < '0' || c > '9' {
				continue
			}
			digits = append(digits, c)
			if maxLen > 0 && len(digits) >= maxLen {
				return string(digits)
			}
		}
	}
	return string(digits)
}
