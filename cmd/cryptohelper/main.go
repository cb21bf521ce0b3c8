// Command cryptohelper exposes the envelope, certificate and stream
// operations over JSON on stdin and stdout, for cross-implementation
// testing. Byte fields are base64 encoded, keys and certificates are PEM.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dark-bio/crypto-fl/cose"
	"github.com/dark-bio/crypto-fl/internal/config"
	"github.com/dark-bio/crypto-fl/internal/fault"
	"github.com/dark-bio/crypto-fl/internal/logging"
)

// Config holds the I/O streams of a run.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Getenv reads the environment. Defaults to os.Getenv.
	Getenv func(string) string
}

// DefaultConfig returns a Config bound to the process streams.
func DefaultConfig() *Config {
	return &Config{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
	}
}

// flags are the persistent flags shared by every command.
type flags struct {
	configPath string
	envFile    string
	domain     string
	maxDrift   time.Duration
	verbose    bool
}

// env is the resolved state a command runs with.
type env struct {
	cfg     *Config
	log     *slog.Logger
	domain  []byte
	options []cose.Option
}

func run(args []string, cfg *Config) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: cryptohelper <command> [args]")
	}
	root := newRootCmd(cfg)
	root.SetArgs(args[1:])
	return root.Execute()
}

func newRootCmd(cfg *Config) *cobra.Command {
	f := &flags{}
	e := &env{cfg: cfg, log: logging.Discard()}

	root := &cobra.Command{
		Use:           "cryptohelper",
		Short:         "Envelope, certificate and stream operations over JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load(cmd, f)
		},
	}
	root.SetIn(cfg.Stdin)
	root.SetOut(cfg.Stdout)
	root.SetErr(cfg.Stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "YAML profile file")
	pf.StringVar(&f.envFile, "env-file", config.DefaultEnvFile, "dotenv file")
	pf.StringVar(&f.domain, "domain", "", "application domain (overrides the profile)")
	pf.DurationVar(&f.maxDrift, "max-drift", 0, "maximum signature timestamp drift, 0 disables the check")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newKeygenCmd(e),
		newSignCmd(e),
		newVerifyCmd(e),
		newSealCmd(e),
		newOpenCmd(e),
		newEncryptCmd(e),
		newDecryptCmd(e),
		newInspectCmd(e),
		newCertCmd(e),
		newStreamCmd(e),
	)
	return root
}

// load resolves the profile and applies the command line overrides.
func (e *env) load(cmd *cobra.Command, f *flags) error {
	e.log = logging.New(e.cfg.Stderr, f.verbose)

	profile, err := config.Load(config.Sources{
		Path:    f.configPath,
		EnvFile: f.envFile,
		Getenv:  e.cfg.Getenv,
	})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("domain") {
		profile.Domain = f.domain
	}
	if cmd.Flags().Changed("max-drift") {
		if f.maxDrift < 0 {
			return fmt.Errorf("--max-drift must not be negative")
		}
		profile.MaxDrift = f.maxDrift
	}

	e.domain = []byte(profile.Domain)
	e.options = nil
	if profile.MaxDrift > 0 {
		e.options = append(e.options, cose.WithMaxDrift(profile.MaxDrift))
	}
	e.log.Debug("profile loaded", "domain", profile.Domain, "max_drift", profile.MaxDrift)
	return nil
}

// decode reads a single JSON request from stdin.
func (e *env) decode(v any) error {
	dec := json.NewDecoder(e.cfg.Stdin)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}
	return nil
}

// encode writes a JSON response to stdout.
func (e *env) encode(v any) error {
	if err := json.NewEncoder(e.cfg.Stdout).Encode(v); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

func fatal(w io.Writer, err error) {
	if kind := fault.KindOf(err); kind != 0 {
		fmt.Fprintf(w, "%v (kind: %v)\n", err, kind)
	} else {
		fmt.Fprintln(w, err)
	}
	os.Exit(1)
}
