package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/itsatony/go-matref"
)

// serveConfig holds parsed serve command configuration
type serveConfig struct {
	addr   string
	prefix string
	store  storeFlags
}

func runServe(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseServeFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgInvalidFlags, err)
		return ExitCodeUsageError
	}

	config, err := cfg.store.loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgConfigFailed, err)
		return ExitCodeUsageError
	}
	if cfg.addr != "" {
		config.Server.Addr = cfg.addr
	}
	if cfg.prefix != "" {
		config.Server.PathPrefix = cfg.prefix
	}

	logger, err := newLogger(cfg.store.verbose)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgLoggerFailed, err)
		return ExitCodeError
	}
	defer func() { _ = logger.Sync() }()

	service, err := openService(config.Storage, logger)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgStoreFailed, err)
		return ExitCodeError
	}
	defer func() { _ = service.Storage().Close() }()

	server, err := matref.NewServer(service, config.Server, logger)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgStoreFailed, err)
		return ExitCodeError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printServing(stdout, config.Server)
	if err := server.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgServeFailed, err)
		return ExitCodeError
	}
	return ExitCodeSuccess
}

// printServing announces the listen address and API root on w
func printServing(w io.Writer, config matref.ServerConfig) {
	addr := config.Addr
	if addr == "" {
		addr = matref.DefaultServerAddr
	}
	prefix := config.PathPrefix
	if prefix == "" {
		prefix = matref.DefaultPathPrefix
	}
	fmt.Fprintf(w, FmtServing, addr, prefix)
}

func parseServeFlags(args []string) (*serveConfig, error) {
	fs := flag.NewFlagSet(CmdNameServe, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg := &serveConfig{}
	fs.StringVar(&cfg.addr, FlagAddr, "", "")
	fs.StringVar(&cfg.prefix, FlagPrefix, "", "")
	cfg.store.register(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}
