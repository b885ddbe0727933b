// opfind discovers the instruction encodings of a black-box decoder and
// keeps them in a resumable catalog.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/colorfulnotion/opfind/config"
	"github.com/colorfulnotion/opfind/log"
	"github.com/colorfulnotion/opfind/oracle"
	"github.com/colorfulnotion/opfind/shape"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// options are the persistent flags plus the configuration they select.
type options struct {
	configPath string
	logLevel   string
	logModules string
	oracle     string

	cfg *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "opfind:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "opfind",
		Short:         "Instruction encoding discovery against a black-box decoder",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, crit)")
	pf.StringVar(&opts.logModules, "log-modules", "", "Comma-separated modules to log at debug level (oracle,sens,explore,validate,solver,kb,report,console)")
	pf.StringVar(&opts.oracle, "oracle", config.DefaultOracle, "Decoder backend: objdump[:path], arm64, table:<file>, script:<file>")

	rootCmd.AddCommand(
		newFindCmd(opts),
		newFind16Cmd(opts),
		newInfoCmd(opts),
		newDiffCmd(opts),
		newDecodeCmd(opts),
		newConsoleCmd(opts),
	)
	return rootCmd
}

// load reads the config file and lets explicitly set flags win.
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-modules") {
		cfg.LogModules = o.logModules
	}
	if flags.Changed("oracle") {
		cfg.Oracle = o.oracle
	}
	if err := log.InitLogger(cfg.LogLevel); err != nil {
		return err
	}
	log.EnableModules(cfg.LogModules)
	o.cfg = cfg
	return nil
}

// openOracle builds the configured backend, optionally behind a persistent
// answer cache. The returned close function is never nil.
func (o *options) openOracle(cachePath string) (oracle.Oracle, func() error, error) {
	backend, err := oracle.Open(o.cfg.Oracle, shape.MD32)
	if err != nil {
		return nil, nil, err
	}
	if cachePath == "" {
		return backend, func() error { return nil }, nil
	}
	cache, err := oracle.OpenCache(backend, cachePath)
	if err != nil {
		return nil, nil, err
	}
	return cache, cache.Close, nil
}

// parseWord reads a hex word. Up to four digits name a 16-bit instruction,
// which sits in the upper half of the word.
func parseWord(s string) (uint32, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil || digits == "" {
		return 0, fmt.Errorf("invalid instruction word %q", s)
	}
	if len(digits) <= 4 {
		v <<= 16
	}
	return uint32(v), nil
}

// parseBound reads a validator window bound; any base strconv accepts.
func parseBound(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bound %q", s)
	}
	return v, nil
}
