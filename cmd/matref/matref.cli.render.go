package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/itsatony/go-matref"
)

// renderConfig holds parsed render command configuration
type renderConfig struct {
	promptPath string
	outputPath string
	format     string
	strict     bool
	quiet      bool
	store      storeFlags
}

func runRender(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseRenderFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgInvalidFlags, err)
		return ExitCodeUsageError
	}

	source, err := readInput(cfg.promptPath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgReadFileFailed, err)
		return ExitCodeInputError
	}
	prompts, batch := parsePrompts(source)

	config, err := cfg.store.loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgConfigFailed, err)
		return ExitCodeUsageError
	}

	logger, err := newLogger(cfg.store.verbose)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgLoggerFailed, err)
		return ExitCodeError
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := openReferenceStore(config, usesLocalStorage(cfg.store, config), logger)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgStoreFailed, err)
		return ExitCodeError
	}
	defer func() { _ = closeStore() }()

	processor, err := matref.NewProcessor(store, matref.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgStoreFailed, err)
		return ExitCodeError
	}

	ctx := context.Background()
	var result *matref.BatchResult
	if cfg.strict {
		result, err = processor.ProcessBatchPrompts(ctx, prompts)
		if err != nil {
			fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgResolveFailed, err)
			return ExitCodeResolveError
		}
	} else {
		result = processor.EnhancePrompts(ctx, prompts)
		if result.Degraded && !cfg.quiet {
			fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgDegraded, result.Err)
		}
	}

	output, err := formatRenderOutput(result, batch, cfg.format)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgJSONMarshalFailed, err)
		return ExitCodeError
	}

	if err := writeOutput(cfg.outputPath, output, stdout); err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgWriteOutputFailed, err)
		return ExitCodeError
	}

	return ExitCodeSuccess
}

func parseRenderFlags(args []string) (*renderConfig, error) {
	fs := flag.NewFlagSet(CmdNameRender, flag.ContinueOnError)
	fs.SetOutput(io.Discard) // Suppress default error messages

	cfg := &renderConfig{}

	fs.StringVar(&cfg.promptPath, FlagPrompt, "", "")
	fs.StringVar(&cfg.promptPath, FlagPromptShort, "", "")
	fs.StringVar(&cfg.outputPath, FlagOutput, FlagDefaultOutput, "")
	fs.StringVar(&cfg.outputPath, FlagOutputShort, FlagDefaultOutput, "")
	fs.StringVar(&cfg.format, FlagFormat, FlagDefaultFormat, "")
	fs.StringVar(&cfg.format, FlagFormatShort, FlagDefaultFormat, "")
	fs.BoolVar(&cfg.strict, FlagStrict, false, "")
	fs.BoolVar(&cfg.quiet, FlagQuiet, false, "")
	fs.BoolVar(&cfg.quiet, FlagQuietShort, false, "")
	cfg.store.register(fs)
	cfg.store.registerClient(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Validation
	if cfg.promptPath == "" {
		return nil, errors.New(ErrMsgMissingPrompt)
	}
	if cfg.format != OutputFormatText && cfg.format != OutputFormatJSON {
		return nil, errors.New(ErrMsgInvalidFormat)
	}

	return cfg, nil
}

// parsePrompts reads a JSON array of prompts as a batch, anything else as one prompt
func parsePrompts(source []byte) ([]string, bool) {
	trimmed := bytes.TrimSpace(source)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var prompts []string
		if err := json.Unmarshal(trimmed, &prompts); err == nil {
			return prompts, true
		}
	}
	return []string{string(source)}, false
}

// formatRenderOutput renders the result as plain prompts or as full JSON
func formatRenderOutput(result *matref.BatchResult, batch bool, format string) ([]byte, error) {
	if format == OutputFormatJSON {
		out, err := json.MarshalIndent(result, "", JSONIndent)
		if err != nil {
			return nil, err
		}
		return append(out, FmtNewline...), nil
	}

	if !batch {
		return []byte(result.EnhancedPrompts[0]), nil
	}
	out, err := json.MarshalIndent(result.EnhancedPrompts, "", JSONIndent)
	if err != nil {
		return nil, err
	}
	return append(out, FmtNewline...), nil
}

// usesLocalStorage reports whether render reads materials from local storage.
// An explicit --storage flag always does; otherwise any configured driver
// other than the empty memory default does.
func usesLocalStorage(flags storeFlags, config matref.Config) bool {
	if flags.storage != "" {
		return true
	}
	return config.Storage.Driver != "" && config.Storage.Driver != matref.StorageDriverNameMemory
}

// openReferenceStore returns a local storage-backed store when local is set,
// otherwise an HTTP client of the configured remote store.
func openReferenceStore(config matref.Config, local bool, logger *zap.Logger) (matref.ReferenceStore, func() error, error) {
	if !local {
		clientConfig := config.Client
		clientConfig.Logger = logger
		client, err := matref.NewHTTPClient(clientConfig)
		if err != nil {
			return nil, nil, err
		}
		return client, func() error { return nil }, nil
	}

	service, err := openService(config.Storage, logger)
	if err != nil {
		return nil, nil, err
	}
	return service, service.Storage().Close, nil
}

// openService opens the configured storage driver and wraps it in a service
func openService(config matref.StorageConfig, logger *zap.Logger) (*matref.Service, error) {
	storage, err := matref.OpenStorage(config.Driver, config.DSN)
	if err != nil {
		return nil, err
	}
	service, err := matref.NewService(storage, logger)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	return service, nil
}
