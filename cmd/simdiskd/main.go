// simdiskd serves the simulated disk described by internal/vfs over the
// TCP line protocol implemented by internal/netsvc.
//
// Usage:
//
//	simdiskd [flags]
//
// Flags:
//
//	-c, --config       Explicit config file path (JSONC)
//	    --backing-path Backing file for the simulated disk
//	    --fs-name      Descriptive file system name (not sent to clients)
//	    --listen       Listen address (default ":9000")
//	    --max-conns    Maximum concurrent connections (default 32)
//	    --print-config Print the resolved config and exit
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/cstdev/simdiskd/internal/config"
	"github.com/cstdev/simdiskd/internal/hostfs"
	"github.com/cstdev/simdiskd/internal/netsvc"
	"github.com/cstdev/simdiskd/internal/vfs"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "simdiskd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr *os.File) error {
	opts, printConfig, code := parseFlags(args, stderr)
	if code >= 0 {
		if code != 0 {
			return fmt.Errorf("invalid flags")
		}

		return nil
	}

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir, opts.configPath, opts.overrides, os.Environ())
	if err != nil {
		return err
	}

	if printConfig {
		out, err := config.Format(cfg)
		if err != nil {
			return err
		}

		fmt.Fprintln(stdout, out)

		return nil
	}

	return serve(cfg, stdout, stderr)
}

// serve acquires the single-instance guard, opens the simulated disk, and
// runs the server until a shutdown signal arrives.
func serve(cfg config.Config, stdout, stderr *os.File) error {
	fsys := hostfs.NewReal()

	guard, err := fsys.Lock(cfg.BackingPath)
	if err != nil {
		return fmt.Errorf("another simdiskd instance already holds %s: %w", cfg.BackingPath, err)
	}

	defer guard.Close()

	manager, err := vfs.Open(fsys, cfg.BackingPath, cfg.FSName, cfg.ConfiguredSize)
	if err != nil {
		return fmt.Errorf("open backing file: %w", err)
	}

	defer manager.Close()

	srv, err := netsvc.NewServer(manager, cfg.ListenAddress, cfg.MaxConnections, stderr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)

	go func() { errCh <- srv.Serve() }()

	select {
	case sig := <-sigCh:
		fmt.Fprintf(stderr, "simdiskd: received %s, shutting down\n", sig)

		return srv.Close()
	case err := <-errCh:
		return err
	}
}

// flagOptions holds everything parseFlags extracts before config.Load runs.
type flagOptions struct {
	configPath string
	overrides  config.Overrides
}

// parseFlags parses args. code is -1 to continue, 0 for a clean early
// exit (e.g. --help), or a nonzero exit code on a parse error.
func parseFlags(args []string, errOut *os.File) (flagOptions, bool, int) {
	flagSet := flag.NewFlagSet("simdiskd", flag.ContinueOnError)
	flagSet.SetOutput(errOut)

	configPath := flagSet.StringP("config", "c", "", "explicit config file path")
	backingPath := flagSet.String("backing-path", "", "backing file for the simulated disk")
	fsName := flagSet.String("fs-name", "", "descriptive file system name (not sent to clients)")
	listen := flagSet.String("listen", "", "listen address")
	maxConns := flagSet.Int("max-conns", 0, "maximum concurrent connections")
	printConfig := flagSet.Bool("print-config", false, "print the resolved config and exit")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return flagOptions{}, false, 0
		}

		return flagOptions{}, false, 2
	}

	var overrides config.Overrides

	if flagSet.Changed("backing-path") {
		overrides.BackingPath = backingPath
	}

	if flagSet.Changed("fs-name") {
		overrides.FSName = fsName
	}

	if flagSet.Changed("listen") {
		overrides.ListenAddress = listen
	}

	if flagSet.Changed("max-conns") {
		overrides.MaxConnections = maxConns
	}

	return flagOptions{configPath: *configPath, overrides: overrides}, *printConfig, -1
}
