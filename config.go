package ndns

import (
	"fmt"
	"strconv"
	"strings"
)

// Config holds the immutable settings an NVSResolver is built from. Once
// constructed via NewConfig it is never mutated; all other state lives in
// DAP counters (owned by the server loop) or per-request scratch.
type Config struct {
	BindAddr string
	Port     uint16

	// GatewaySuffix rewrite, e.g. ".gw.example|.coin" or just ".gw.example".
	gwSuffix        string
	gwReplace       string
	gwSuffixDots    int
	gwSuffixEnabled bool

	allowed *AllowedTable
	local   *LocalTable

	// LocalSubdomainSearch is enabled when any local entry's name starts
	// with a dot, mirroring FLAG_LOCAL_SD in the original.
	LocalSubdomainSearch bool

	DAPSize      uint32
	DAPThreshold uint32

	EnumTrustIDs []string

	TollFreeSources []string

	// AdminAddr, if non-empty, starts the stdlib admin HTTP listener.
	AdminAddr string

	// SyslogNetwork/SyslogAddr, if SyslogAddr is non-empty, forwards DAP
	// abuse events to a syslog daemon.
	SyslogNetwork string
	SyslogAddr    string

	Verbose uint8
}

// ConfigOptions mirrors the constructor parameters of the original EmcDns:
// bind_ip, port, gw_suffix, allowed_suffixes, local_file, dap_size,
// dap_threshold, enum_trust_list, toll_free_list, verbose.
type ConfigOptions struct {
	BindAddr        string
	Port            uint16
	GatewaySuffix   string
	AllowedTLDs     string // pipe-separated ".tld" / "N$tld" entries
	LocalFile       string // path to "name=value" lines
	DAPSize         uint32
	DAPThreshold    uint32
	EnumTrustList   string // pipe/comma separated trust IDs
	TollFreeSources string // pipe-separated filenames or "@NVSKEY"
	AdminAddr       string
	SyslogNetwork   string
	SyslogAddr      string
	Verbose         uint8
}

// NewConfig builds a Config, parsing the allowed-TLD list and the local
// override file into their read-only lookup tables.
func NewConfig(opt ConfigOptions) (*Config, error) {
	c := &Config{
		BindAddr:        opt.BindAddr,
		Port:            opt.Port,
		DAPSize:         opt.DAPSize,
		DAPThreshold:    opt.DAPThreshold,
		AdminAddr:       opt.AdminAddr,
		SyslogNetwork:   opt.SyslogNetwork,
		SyslogAddr:      opt.SyslogAddr,
		Verbose:         opt.Verbose,
		TollFreeSources: splitNonEmpty(opt.TollFreeSources, "|"),
	}

	if opt.GatewaySuffix != "" {
		c.gwSuffixEnabled = true
		suf := opt.GatewaySuffix
		if i := strings.IndexByte(suf, '|'); i >= 0 {
			c.gwSuffix = suf[:i]
			c.gwReplace = suf[i+1:]
		} else {
			c.gwSuffix = suf
			c.gwReplace = ""
		}
		c.gwSuffixDots = strings.Count(c.gwSuffix, ".")
	}

	allowed, err := BuildAllowedTable(opt.AllowedTLDs)
	if err != nil {
		return nil, fmt.Errorf("parsing allowed TLD list: %w", err)
	}
	c.allowed = allowed

	local, hasSD, err := BuildLocalTable(opt.LocalFile)
	if err != nil {
		return nil, fmt.Errorf("parsing local override file %q: %w", opt.LocalFile, err)
	}
	c.local = local
	c.LocalSubdomainSearch = hasSD

	for _, id := range splitNonEmpty(opt.EnumTrustList, "|,") {
		c.EnumTrustIDs = append(c.EnumTrustIDs, id)
	}

	return c, nil
}

// splitNonEmpty splits s on any of the bytes in seps and drops empty tokens.
func splitNonEmpty(s string, seps string) []string {
	if s == "" {
		return nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
	return fields
}

// atoiDefault parses s as an int, returning def on any failure.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
