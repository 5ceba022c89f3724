package ndns

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/require"
)

func TestExtractE164StripsNonDigitsRightToLeft(t *testing.T) {
	got := extractE164([]string{"1", "5a55", "1234"}, 0)
	require.Equal(t, "43215551", got)
}

func TestExtractE164RespectsMaxLen(t *testing.T) {
	got := extractE164([]string{"1", "555", "1234567"}, 5)
	require.Equal(t, "76543", got)
}

func TestClassifyEnumLine(t *testing.T) {
	require.Equal(t, enumLineE2U, classifyEnumLine("E2Uvoice=1|10|regex"))
	require.Equal(t, enumLineTTL, classifyEnumLine("TTL=60"))
	require.Equal(t, enumLineSIG, classifyEnumLine("SIG=trust|sig"))
	require.Equal(t, enumLineOther, classifyEnumLine("X=1"))
}

func TestParseE2ULineValid(t *testing.T) {
	rule, ok := parseE2ULine("E2Uvoice=1|10|!^.*$!sip:test@example.com!")
	require.True(t, ok)
	require.Equal(t, "voice", rule.service)
	require.Equal(t, uint16(1), rule.order)
	require.Equal(t, uint16(10), rule.pref)
}

func TestParseE2ULineRejectsMalformed(t *testing.T) {
	_, ok := parseE2ULine("E2Uvoice=notanumber|10|regex")
	require.False(t, ok)
}

func TestParseSRLTemplateConstantBucket(t *testing.T) {
	tpl, err := parseSRLTemplate("4|fixed-bucket-key")
	require.NoError(t, err)
	require.Equal(t, uint32(0), tpl.mask)
	require.Equal(t, "fixed-bucket-key", tpl.template)
}

func TestParseSRLTemplateWithConversion(t *testing.T) {
	tpl, err := parseSRLTemplate("4|bucket-%d")
	require.NoError(t, err)
	require.Equal(t, uint32(0xf), tpl.mask)
}

func TestParseSRLTemplateRejectsBadConversion(t *testing.T) {
	_, err := parseSRLTemplate("4|bucket-%s-oops")
	require.Error(t, err)
}

func TestCheckEnumSigRoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	keyID := keyIDOf(priv.PubKey().SerializeCompressed())

	backend, err := NewFileBackend("")
	require.NoError(t, err)
	backend.records["alice"] = "KEYID=" + hex.EncodeToString(keyID)

	verifiers := newEnumVerifiers(nil, backend)

	const qStr = "tld:5551234567:0"
	hash := enumMessageHash(qStr)
	sig := ecdsa.SignCompact(priv, hash[:], true)
	sigB64 := base64.StdEncoding.EncodeToString(sig)

	ok := checkEnumSig(verifiers, "alice|"+sigB64, qStr)
	require.True(t, ok)
}

func TestCheckEnumSigRejectsUntrustedID(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	keyID := keyIDOf(priv.PubKey().SerializeCompressed())

	backend, err := NewFileBackend("")
	require.NoError(t, err)
	backend.records["alice"] = "KEYID=" + hex.EncodeToString(keyID)

	verifiers := newEnumVerifiers([]string{"bob"}, backend)

	const qStr = "tld:5551234567:0"
	hash := enumMessageHash(qStr)
	sig := ecdsa.SignCompact(priv, hash[:], true)
	sigB64 := base64.StdEncoding.EncodeToString(sig)

	ok := checkEnumSig(verifiers, "alice|"+sigB64, qStr)
	require.False(t, ok)
}
