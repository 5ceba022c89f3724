package ndns

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileBackendLoadsRecords(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "nvs-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString("; comment\ndns:example.coin=A=1.2.3.4\ntrust:alice=KEYID=aabbcc\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	b, err := NewFileBackend(f.Name())
	require.NoError(t, err)

	v, ok, err := b.GetNameValue("dns:example.coin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "A=1.2.3.4", v)

	_, ok, _ = b.GetNameValue("dns:missing.coin")
	require.False(t, ok)
}

func TestFileBackendMissingPathIsEmptyNotError(t *testing.T) {
	b, err := NewFileBackend("/no/such/file.txt")
	require.NoError(t, err)
	_, ok, _ := b.GetNameValue("dns:example.coin")
	require.False(t, ok)
}

func TestFileBackendIBDToggle(t *testing.T) {
	b, err := NewFileBackend("")
	require.NoError(t, err)
	require.False(t, b.InitialBlockDownload())
	b.SetIBD(true)
	require.True(t, b.InitialBlockDownload())
}

func TestFileBackendResolveVerifierParsesKeyID(t *testing.T) {
	b, err := NewFileBackend("")
	require.NoError(t, err)
	b.records["alice"] = "KEYID=aabbcc"

	rec, ok, err := b.ResolveVerifier("alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{0xaa, 0xbb, 0xcc}, rec.KeyID)
}

func TestFileBackendResolveVerifierMiss(t *testing.T) {
	b, err := NewFileBackend("")
	require.NoError(t, err)
	_, ok, err := b.ResolveVerifier("nobody")
	require.NoError(t, err)
	require.False(t, ok)
}
