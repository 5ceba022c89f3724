package ndns

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfigParsesGatewaySuffix(t *testing.T) {
	cfg, err := NewConfig(ConfigOptions{GatewaySuffix: ".gw.example|.coin"})
	require.NoError(t, err)
	require.True(t, cfg.gwSuffixEnabled)
	require.Equal(t, ".gw.example", cfg.gwSuffix)
	require.Equal(t, ".coin", cfg.gwReplace)
}

func TestNewConfigGatewaySuffixWithoutReplacement(t *testing.T) {
	cfg, err := NewConfig(ConfigOptions{GatewaySuffix: ".gw.example"})
	require.NoError(t, err)
	require.True(t, cfg.gwSuffixEnabled)
	require.Equal(t, "", cfg.gwReplace)
}

func TestNewConfigNoGatewaySuffixDisablesRewrite(t *testing.T) {
	cfg, err := NewConfig(ConfigOptions{})
	require.NoError(t, err)
	require.False(t, cfg.gwSuffixEnabled)
}

func TestNewConfigLoadsLocalSubdomainSearchFlag(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "local-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString(".sub.example.coin=A=1.1.1.1\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := NewConfig(ConfigOptions{LocalFile: f.Name()})
	require.NoError(t, err)
	require.True(t, cfg.LocalSubdomainSearch)
}

func TestNewConfigToleratesMissingLocalFile(t *testing.T) {
	_, err := NewConfig(ConfigOptions{LocalFile: "/root/does-not-exist-dir/local.txt"})
	// A missing file is tolerated (treated as empty); only a real read
	// error (e.g. a directory given where a file is expected) surfaces.
	require.NoError(t, err)
}

func TestSplitNonEmpty(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, splitNonEmpty("a,b;c", ",;"))
	require.Nil(t, splitNonEmpty("", ","))
}

func TestAtoiDefault(t *testing.T) {
	require.Equal(t, 5, atoiDefault("5", 1))
	require.Equal(t, 1, atoiDefault("not-a-number", 1))
	require.Equal(t, 1, atoiDefault("", 1))
}
