package main

import (
	"bytes"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// fileConfig is the TOML shape loaded from disk and translated into
// ndns.ConfigOptions, the Go-native replacement for the original's
// emercoin.conf constructor arguments (bind-ip, port, gw-suffix,
// allowed-suffixes, local-file, dap-size, dap-threshold,
// enum-trust-list, toll-free-list, verbose).
type fileConfig struct {
	Title    string
	Resolver resolverConfig
	Admin    adminConfig
	Syslog   syslogConfig
}

type resolverConfig struct {
	BindAddr        string `toml:"bind-address"`
	Port            uint16 `toml:"port"`
	GatewaySuffix   string `toml:"gateway-suffix"`
	AllowedTLDs     string `toml:"allowed-tlds"`
	LocalFile       string `toml:"local-file"`
	DAPSize         uint32 `toml:"dap-size"`
	DAPThreshold    uint32 `toml:"dap-threshold"`
	EnumTrustList   string `toml:"enum-trust-list"`
	TollFreeSources string `toml:"toll-free-sources"`
	NVSFile         string `toml:"nvs-file"`
	Verbose         uint8  `toml:"verbose"`
}

type adminConfig struct {
	Address string `toml:"address"`
}

type syslogConfig struct {
	Network string `toml:"network"`
	Address string `toml:"address"`
}

func loadConfig(name ...string) (fileConfig, error) {
	b := new(bytes.Buffer)
	var c fileConfig
	for _, fn := range name {
		if err := loadFile(b, fn); err != nil {
			return c, err
		}
		b.WriteString("\n")
	}
	_, err := toml.DecodeReader(b, &c)
	return c, err
}

func loadFile(w io.Writer, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
