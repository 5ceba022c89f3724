package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	ndns "github.com/maxihatop/ndns"
)

type options struct {
	logLevel uint32
	version  bool
}

func main() {
	var opt options
	cmd := &cobra.Command{
		Use:   "ndns <config> [<config>..]",
		Short: "Blockchain name-value-store authoritative DNS resolver",
		Long: `Blockchain name-value-store authoritative DNS resolver.

Answers UDP DNS queries for names published in a blockchain
name-value store, with an allowed-TLD/local override table, an
ENUM (RFC 6116) lookup path, a toll-free regex matcher, and a DAP
abuse-rate limiter in front of both.

Configuration is a single TOML file; multiple files may be given
and are concatenated before parsing.
`,
		Example: "  ndns ndns.toml",
		Args:    cobra.MinimumNArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(opt, args)
		},
		SilenceUsage: true,
	}

	cmd.Flags().Uint32VarP(&opt.logLevel, "log-level", "l", 4, "log level; 0=None .. 6=Trace")
	cmd.Flags().BoolVarP(&opt.version, "version", "v", false, "Prints code version string")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func start(opt options, args []string) error {
	if opt.logLevel > 6 {
		return fmt.Errorf("invalid log level: %d", opt.logLevel)
	}
	if opt.version {
		printVersion()
		return nil
	}
	if len(args) < 1 {
		return errors.New("not enough arguments")
	}
	ndns.Log = logrus.New()
	ndns.Log.SetLevel(logrus.Level(opt.logLevel))

	fc, err := loadConfig(args...)
	if err != nil {
		return err
	}

	cfg, err := ndns.NewConfig(ndns.ConfigOptions{
		BindAddr:        fc.Resolver.BindAddr,
		Port:            fc.Resolver.Port,
		GatewaySuffix:   fc.Resolver.GatewaySuffix,
		AllowedTLDs:     fc.Resolver.AllowedTLDs,
		LocalFile:       fc.Resolver.LocalFile,
		DAPSize:         fc.Resolver.DAPSize,
		DAPThreshold:    fc.Resolver.DAPThreshold,
		EnumTrustList:   fc.Resolver.EnumTrustList,
		TollFreeSources: fc.Resolver.TollFreeSources,
		AdminAddr:       fc.Admin.Address,
		SyslogNetwork:   fc.Syslog.Network,
		SyslogAddr:      fc.Syslog.Address,
		Verbose:         fc.Resolver.Verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	backend, err := ndns.NewFileBackend(fc.Resolver.NVSFile)
	if err != nil {
		return fmt.Errorf("failed to load nvs file %q: %w", fc.Resolver.NVSFile, err)
	}

	var resolver ndns.Resolver = ndns.NewNVSResolver(cfg, backend)
	if fc.Syslog.Address != "" {
		resolver = ndns.NewAbuseSyslog(resolver.String(), resolver, ndns.SyslogOptions{
			Network: fc.Syslog.Network,
			Address: fc.Syslog.Address,
			Tag:     "ndns",
		})
	}

	srv := ndns.NewServer(cfg.BindAddr, cfg.Port, resolver)
	go func() {
		if err := srv.Start(); err != nil {
			ndns.Log.WithError(err).Error("server stopped")
		}
	}()

	var admin *ndns.AdminListener
	if cfg.AdminAddr != "" {
		admin = ndns.NewAdminListener("admin", cfg.AdminAddr, resolver)
		go func() {
			if err := admin.Start(); err != nil {
				ndns.Log.WithError(err).Error("admin listener stopped")
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	<-sig
	ndns.Log.Info("stopping")

	if admin != nil {
		_ = admin.Stop()
	}
	return srv.Shutdown()
}

func printVersion() {
	fmt.Println("Build: ", ndns.BuildNumber)
	fmt.Println("Build Time: ", ndns.BuildTime)
	fmt.Println("Version: ", ndns.BuildVersion)
}
