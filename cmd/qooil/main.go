package main

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/qooil/qooil"
	"github.com/qooil/qooil/config"
	"github.com/qooil/qooil/repl"
)

var opts struct {
	server     bool
	client     bool
	addr       string
	port       int
	jobs       int
	configPath string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "qooil",
	Short: "a small sandboxed file-transfer server and client",
	Long: `qooil serves the directory it is started in over a compact binary
protocol, or connects to such a server with an interactive shell.`,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolVarP(&opts.server, "server", "s", false, "run as a server")
	flags.BoolVarP(&opts.client, "client", "c", false, "run as a client (the default)")
	flags.StringVarP(&opts.addr, "address", "a", "", "address to bind or connect to")
	flags.IntVarP(&opts.port, "port", "p", config.DefaultPort, "TCP port")
	flags.IntVarP(&opts.jobs, "jobs", "j", 0, "server worker pool size")
	flags.StringVar(&opts.configPath, "config", "", "TOML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// override applies the flags the user actually set on top of the
// loaded configuration.
func override(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("address") {
		cfg.Addr = opts.addr
	}
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("jobs") {
		cfg.Workers = opts.jobs
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
}

func run(cmd *cobra.Command, args []string) error {
	if opts.server && opts.client {
		return errors.New("-s and -c are mutually exclusive")
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	override(cmd.Flags(), &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	if opts.server {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		srv := &qooil.Server{
			Addr:    cfg.ListenAddr(),
			Workers: cfg.Workers,
			MaxName: cfg.MaxName,
			MaxPath: cfg.MaxPath,
		}
		logrus.Infof("serving %s on %s with %d workers", wd, srv.Addr, cfg.Workers)
		return srv.ListenAndServe()
	}
	return repl.New(cfg.DialAddr(), os.Stdin, os.Stdout).Run()
}
