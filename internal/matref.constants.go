package internal

// Reference token delimiters: @[label](id)
const (
	StrRefOpen      = "@["
	StrRefSeparator = "]("
	CharLabelClose  = ']'
	CharIDOpen      = '('
	CharIDClose     = ')'
	CharNewline     = '\n'
)

// utf8ContinuationMask identifies continuation bytes of a multi-byte rune.
const (
	utf8ContinuationMask = 0xC0
	utf8ContinuationBits = 0x80
)

// Delimiter lookup states
const (
	indexNone    = -1 // no delimiter left in the source
	indexUnknown = -2 // not searched yet
)

// Log messages
const (
	LogMsgScannerCreated = "reference scanner created"
	LogMsgScanComplete   = "reference scan complete"
)

// Log field names
const (
	LogFieldSource     = "source_length"
	LogFieldReferences = "reference_count"
)
