package ndns

import (
	"os"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, opt ConfigOptions, records map[string]string) *NVSResolver {
	t.Helper()
	cfg, err := NewConfig(opt)
	require.NoError(t, err)

	backend, err := NewFileBackend("")
	require.NoError(t, err)
	for k, v := range records {
		backend.records[k] = v
	}
	return NewNVSResolver(cfg, backend)
}

func query(name string, qtype uint16) *dns.Msg {
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(name), qtype)
	return q
}

func TestResolveDirectHitOnFullKey(t *testing.T) {
	r := newTestResolver(t, ConfigOptions{AllowedTLDs: ".coin"}, map[string]string{
		"dns:example.coin": "A=1.2.3.4|TTL=60",
	})

	a, err := r.Resolve(query("example.coin", dns.TypeA), ClientInfo{})
	require.NoError(t, err)
	require.Equal(t, dns.RcodeSuccess, a.Rcode)
	require.Len(t, a.Answer, 1)
	require.Equal(t, "1.2.3.4", a.Answer[0].(*dns.A).A.String())
}

func TestResolveRefusesDisallowedTLD(t *testing.T) {
	r := newTestResolver(t, ConfigOptions{AllowedTLDs: ".coin"}, nil)

	a, err := r.Resolve(query("example.lib", dns.TypeA), ClientInfo{})
	require.NoError(t, err)
	require.Equal(t, dns.RcodeRefused, a.Rcode)
}

func TestResolveNXDOMAINOnMiss(t *testing.T) {
	r := newTestResolver(t, ConfigOptions{AllowedTLDs: ".coin"}, nil)

	a, err := r.Resolve(query("nowhere.coin", dns.TypeA), ClientInfo{})
	require.NoError(t, err)
	require.Equal(t, dns.RcodeNameError, a.Rcode)
}

func TestResolveLocalOverrideWins(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "local-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString("local.coin=A=9.9.9.9\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r := newTestResolver(t, ConfigOptions{AllowedTLDs: ".coin", LocalFile: f.Name()}, map[string]string{
		"dns:local.coin": "A=1.1.1.1",
	})

	a, err := r.Resolve(query("local.coin", dns.TypeA), ClientInfo{})
	require.NoError(t, err)
	require.Len(t, a.Answer, 1)
	require.Equal(t, "9.9.9.9", a.Answer[0].(*dns.A).A.String())
}

func TestResolveSubdomainAllowedBySDWalksDeeper(t *testing.T) {
	r := newTestResolver(t, ConfigOptions{AllowedTLDs: ".coin"}, map[string]string{
		"dns:example.coin":     "NS=ns1.example.coin|SD=www,mail",
		"dns:www.example.coin": "A=4.4.4.4",
	})

	a, err := r.Resolve(query("www.example.coin", dns.TypeA), ClientInfo{})
	require.NoError(t, err)
	require.Equal(t, dns.RcodeSuccess, a.Rcode)
	require.Len(t, a.Answer, 1)
	require.Equal(t, "4.4.4.4", a.Answer[0].(*dns.A).A.String())
}

func TestResolveReferralWhenSubLabelNotAllowed(t *testing.T) {
	r := newTestResolver(t, ConfigOptions{AllowedTLDs: ".coin"}, map[string]string{
		"dns:example.coin": "NS=ns1.example.coin|SD=mail",
	})

	a, err := r.Resolve(query("sub.example.coin", dns.TypeA), ClientInfo{})
	require.NoError(t, err)
	require.NotEmpty(t, a.Ns)
	require.Equal(t, dns.TypeNS, a.Ns[0].Header().Rrtype)
}

func TestResolveGatewaySuffixRewrite(t *testing.T) {
	r := newTestResolver(t, ConfigOptions{
		AllowedTLDs:   ".coin",
		GatewaySuffix: ".gw.example|.coin",
	}, map[string]string{
		"dns:example.coin": "A=7.7.7.7",
	})

	a, err := r.Resolve(query("example.gw.example", dns.TypeA), ClientInfo{})
	require.NoError(t, err)
	require.Equal(t, dns.RcodeSuccess, a.Rcode)
	require.Len(t, a.Answer, 1)
	require.Equal(t, "7.7.7.7", a.Answer[0].(*dns.A).A.String())
}

func TestResolveServfailDuringInitialBlockDownload(t *testing.T) {
	cfg, err := NewConfig(ConfigOptions{AllowedTLDs: ".coin"})
	require.NoError(t, err)
	backend, err := NewFileBackend("")
	require.NoError(t, err)
	backend.SetIBD(true)

	r := NewNVSResolver(cfg, backend)
	a, err := r.Resolve(query("example.coin", dns.TypeA), ClientInfo{})
	require.NoError(t, err)
	require.Equal(t, dns.RcodeServerFailure, a.Rcode)
}

func TestResolveANYExpandsFixedSet(t *testing.T) {
	r := newTestResolver(t, ConfigOptions{AllowedTLDs: ".coin"}, map[string]string{
		"dns:example.coin": "A=1.2.3.4|MX=mail.example.coin:10",
	})

	a, err := r.Resolve(query("example.coin", dns.TypeANY), ClientInfo{})
	require.NoError(t, err)
	require.Equal(t, dns.RcodeSuccess, a.Rcode)
	require.NotEmpty(t, a.Answer)
}
