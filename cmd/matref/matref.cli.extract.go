package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/itsatony/go-matref"
)

// extractConfig holds parsed extract command configuration
type extractConfig struct {
	promptPath string
	format     string
}

func runExtract(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseExtractFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgInvalidFlags, err)
		return ExitCodeUsageError
	}

	source, err := readInput(cfg.promptPath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgReadFileFailed, err)
		return ExitCodeInputError
	}

	tokens := matref.ExtractTokens(string(source))

	if cfg.format == OutputFormatJSON {
		jsonBytes, err := json.MarshalIndent(tokens, "", JSONIndent)
		if err != nil {
			fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgJSONMarshalFailed, err)
			return ExitCodeError
		}
		fmt.Fprintln(stdout, string(jsonBytes))
		return ExitCodeSuccess
	}

	if len(tokens) == 0 {
		fmt.Fprintln(stdout, ExtractTextNone)
		return ExitCodeSuccess
	}
	for _, tok := range tokens {
		fmt.Fprintf(stdout, ExtractTextFormat, tok.Position, tok.MaterialID, tok.Label)
	}
	return ExitCodeSuccess
}

func parseExtractFlags(args []string) (*extractConfig, error) {
	fs := flag.NewFlagSet(CmdNameExtract, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg := &extractConfig{}
	fs.StringVar(&cfg.promptPath, FlagPrompt, "", "")
	fs.StringVar(&cfg.promptPath, FlagPromptShort, "", "")
	fs.StringVar(&cfg.format, FlagFormat, FlagDefaultFormat, "")
	fs.StringVar(&cfg.format, FlagFormatShort, FlagDefaultFormat, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.promptPath == "" {
		return nil, errors.New(ErrMsgMissingPrompt)
	}
	if cfg.format != OutputFormatText && cfg.format != OutputFormatJSON {
		return nil, errors.New(ErrMsgInvalidFormat)
	}
	return cfg, nil
}
