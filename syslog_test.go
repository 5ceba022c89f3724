package ndns

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func TestAbuseSyslogPassesThroughReply(t *testing.T) {
	q := new(dns.Msg)
	q.SetQuestion("example.coin.", dns.TypeA)
	want := newReply(q)

	inner := &stubResolver{Reply: want}
	s := &AbuseSyslog{id: "test", resolver: inner}

	got, err := s.Resolve(q, ClientInfo{})
	require.NoError(t, err)
	require.Same(t, want, got)
	require.Equal(t, 1, inner.HitCount())
}

func TestAbuseSyslogHandlesNilWriter(t *testing.T) {
	// writer is nil (Dial failed or was never configured); emit must be a
	// silent no-op rather than a panic.
	q := new(dns.Msg)
	q.SetQuestion("example.coin.", dns.TypeA)

	inner := &stubResolver{Reply: nil}
	s := &AbuseSyslog{id: "test", resolver: inner}

	require.NotPanics(t, func() {
		_, _ = s.Resolve(q, ClientInfo{})
	})
}
