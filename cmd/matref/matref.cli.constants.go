package main

// Command names
const (
	CmdNameExtract = "extract"
	CmdNameRender  = "render"
	CmdNameServe   = "serve"
	CmdNameVersion = "version"
	CmdNameHelp    = "help"
)

// Flag names - long form
const (
	FlagPrompt  = "prompt"
	FlagOutput  = "output"
	FlagFormat  = "format"
	FlagConfig  = "config"
	FlagEnvFile = "env-file"
	FlagAPIURL  = "api-url"
	FlagAPIKey  = "api-key"
	FlagTimeout = "timeout"
	FlagStorage = "storage"
	FlagDSN     = "dsn"
	FlagAddr    = "addr"
	FlagPrefix  = "prefix"
	FlagStrict  = "strict"
	FlagVerbose = "verbose"
	FlagQuiet   = "quiet"
)

// Flag names - short form
const (
	FlagPromptShort  = "p"
	FlagOutputShort  = "o"
	FlagFormatShort  = "F"
	FlagConfigShort  = "c"
	FlagQuietShort   = "q"
	FlagVerboseShort = "v"
)

// Flag default values
const (
	FlagDefaultOutput = "-" // stdout
	FlagDefaultFormat = "text"
)

// Output formats
const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
)

// Exit codes
const (
	ExitCodeSuccess      = 0
	ExitCodeError        = 1
	ExitCodeUsageError   = 2
	ExitCodeResolveError = 3
	ExitCodeInputError   = 4
)

// Input source indicators
const (
	InputSourceStdin = "-"
)

// Error messages - ALL must be constants
const (
	ErrMsgUnknownCommand    = "unknown command"
	ErrMsgMissingPrompt     = "prompt source required"
	ErrMsgInvalidFlags      = "invalid flags"
	ErrMsgInvalidFormat     = "invalid output format"
	ErrMsgReadFileFailed    = "failed to read file"
	ErrMsgWriteOutputFailed = "failed to write output"
	ErrMsgConfigFailed      = "failed to load configuration"
	ErrMsgStoreFailed       = "failed to set up material store"
	ErrMsgResolveFailed     = "material resolution failed"
	ErrMsgServeFailed       = "server failed"
	ErrMsgLoggerFailed      = "failed to create logger"
	ErrMsgJSONMarshalFailed = "failed to marshal JSON"
	ErrMsgDegraded          = "warning: materials could not be resolved, prompts left unchanged"
)

// Help text templates
const (
	HelpMainUsage = `go-matref - Material reference resolution for prompts

Usage:
    matref <command> [options]

Commands:
    extract     List the material references of a prompt
    render      Resolve material references in prompts
    serve       Run the material store HTTP API
    version     Show version information
    help        Show help for a command

Use "matref help <command>" for more information about a command.`

	HelpExtractUsage = `List the material references of a prompt

Usage:
    matref extract [options]

Options:
    -p, --prompt <file>     Prompt file (use "-" for stdin)
    -F, --format <format>   Output format: text, json (default: text)

Examples:
    matref extract -p prompt.txt
    echo 'Use @[logo](mat_1)' | matref extract -p - -F json`

	HelpRenderUsage = `Resolve material references in prompts

The prompt file holds one prompt, or a JSON array of prompts resolved as
one batch. Materials come from a remote store (--api-url) unless a
storage driver other than memory is configured (storage.driver,
MATREF_STORAGE_DRIVER), or --storage is given.

Usage:
    matref render [options]

Options:
    -p, --prompt <file>     Prompt file (use "-" for stdin)
    -o, --output <file>     Output file (default: stdout)
    -F, --format <format>   Output format: text, json (default: text)
    -c, --config <file>     YAML config file
    --env-file <file>       .env file with MATREF_* variables
    --api-url <url>         Material store API root
    --api-key <key>         Material store API key
    --timeout <duration>    Request timeout (e.g. 30s)
    --storage <driver>      Local storage driver: memory, filesystem, postgres
    --dsn <dsn>             Local storage location
    --strict                Fail instead of returning prompts unchanged
    -q, --quiet             Suppress warnings
    -v, --verbose           Debug logging

Examples:
    matref render -p prompt.txt --api-url http://localhost:5030/api
    matref render -p prompts.json --storage filesystem --dsn ./materials -F json`

	HelpServeUsage = `Run the material store HTTP API

Usage:
    matref serve [options]

Options:
    -c, --config <file>     YAML config file
    --env-file <file>       .env file with MATREF_* variables
    --addr <addr>           Listen address (default: :5030)
    --prefix <path>         Route prefix (default: /api)
    --api-key <key>         Require this X-API-Key on material routes
    --storage <driver>      Storage driver: memory, filesystem, postgres
    --dsn <dsn>             Storage location
    -v, --verbose           Debug logging

Examples:
    matref serve --storage filesystem --dsn ./materials
    matref serve -c matref.yaml`

	HelpVersionUsage = `Show version information

Usage:
    matref version [options]

Options:
    -F, --format <format>   Output format: text, json (default: text)`

	HelpHelpUsage = `Show help for a command

Usage:
    matref help [command]

Commands:
    extract     Show help for extract command
    render      Show help for render command
    serve       Show help for serve command
    version     Show help for version command`
)

// Version output format templates
const (
	VersionTextTemplate = "go-matref version %s\nCommit: %s\nBranch: %s\nBuilt: %s\nGo: %s"
	VersionUnknown      = "unknown"
)

// Extract output format templates
const (
	ExtractTextFormat = "%s\t%s\t%s\n"
	ExtractTextNone   = "no material references"
)

// CLI metadata
const (
	CLIName        = "matref"
	CLIDescription = "Material reference resolution for prompts"
)

// File permission constant
const (
	FilePermissions = 0644
)

// Format string constants
const (
	FmtErrorWithDetail = "%s: %s\n"
	FmtErrorWithCause  = "%s: %v\n"
	FmtServing         = "Serving material store on %s%s\n"
	FmtNewline         = "\n"
	JSONIndent         = "  "
)
