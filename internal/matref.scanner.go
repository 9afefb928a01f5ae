package internal

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Position represents a location in the scanned text
type Position struct {
	Offset int `json:"offset"` // Byte offset from start
	Line   int `json:"line"`   // 1-indexed line number
	Column int `json:"column"` // 1-indexed rune column
}

// String returns a human-readable position string
func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// Reference is a single @[label](id) occurrence.
// Raw is always source[Position.Offset:End].
type Reference struct {
	Raw      string
	Label    string
	ID       string
	Position Position
	End      int
}

// Scanner walks a text left to right and yields material references.
// It recognises exactly one fixed grammar and never backtracks over an
// emitted reference, so references cannot overlap.
type Scanner struct {
	source string
	pos    int // Current byte position
	line   int // Current line (1-indexed)
	column int // Current rune column (1-indexed)
	count  int
	done   bool
	logger *zap.Logger

	// Next known ']' and ')' at or after the last lookup, or indexNone
	// when none remains. Lookups only move forward, so each byte of the
	// source is searched at most once per delimiter.
	labelClose int
	idClose    int
}

// NewScanner creates a scanner over source
func NewScanner(source string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug(LogMsgScannerCreated, zap.Int(LogFieldSource, len(source)))
	return &Scanner{
		source:     source,
		line:       1,
		column:     1,
		labelClose: indexUnknown,
		idClose:    indexUnknown,
		logger: logger,
	}
}

// Next returns the next reference. The second result is false once the
// source is exhausted.
func (s *Scanner) Next() (Reference, bool) {
	if s.done {
		return Reference{}, false
	}

	for s.pos < len(s.source) {
		idx := strings.Index(s.source[s.pos:], StrRefOpen)
		if idx < 0 {
			break
		}
		s.advanceTo(s.pos + idx)

		ref, ok := s.matchAt(s.pos)
		if !ok {
			// Without a closing delimiter ahead no later reference can match.
			if s.labelClose == indexNone || s.idClose == indexNone {
				break
			}
			// Not a reference; retry from the next byte like a regex scan would.
			s.advanceTo(s.pos + 1)
			continue
		}

		ref.Position = s.currentPosition()
		s.advanceTo(ref.End)
		s.count++
		return ref, true
	}

	s.advanceTo(len(s.source))
	s.done = true
	s.logger.Debug(LogMsgScanComplete, zap.Int(LogFieldReferences, s.count))
	return Reference{}, false
}

// All drains the scanner and returns every remaining reference
func (s *Scanner) All() []Reference {
	var refs []Reference
	for {
		ref, ok := s.Next()
		if !ok {
			return refs
		}
		refs = append(refs, ref)
	}
}

// matchAt tries to recognise a complete reference starting at start,
// which must point at StrRefOpen. Label and id must both be non-empty.
func (s *Scanner) matchAt(start int) (Reference, bool) {
	labelStart := start + len(StrRefOpen)
	labelEnd := s.indexFrom(CharLabelClose, labelStart, &s.labelClose)
	if labelEnd <= labelStart {
		return Reference{}, false
	}

	if !strings.HasPrefix(s.source[labelEnd:], StrRefSeparator) {
		return Reference{}, false
	}

	idStart := labelEnd + len(StrRefSeparator)
	idEnd := s.indexFrom(CharIDClose, idStart, &s.idClose)
	if idEnd <= idStart {
		return Reference{}, false
	}

	return Reference{
		Raw:   s.source[start : idEnd+1],
		Label: s.source[labelStart:labelEnd],
		ID:    s.source[idStart:idEnd],
		End:   idEnd + 1,
	}, true
}

// indexFrom returns the absolute index of the first c at or after from,
// or indexNone. cache holds the previous answer for c; from never
// decreases between calls for the same cache.
func (s *Scanner) indexFrom(c byte, from int, cache *int) int {
	if *cache == indexNone || *cache >= from {
		return *cache
	}
	i := strings.IndexByte(s.source[from:], c)
	if i < 0 {
		*cache = indexNone
		return indexNone
	}
	*cache = from + i
	return *cache
}

// advanceTo moves the cursor to target, keeping line and column current
func (s *Scanner) advanceTo(target int) {
	if target > len(s.source) {
		target = len(s.source)
	}
	for s.pos < target {
		ch := s.source[s.pos]
		s.pos++
		switch {
		case ch == CharNewline:
			s.line++
			s.column = 1
		case ch&utf8ContinuationMask == utf8ContinuationBits:
			// continuation byte, same column
		default:
			s.column++
		}
	}
}

func (s *Scanner) currentPosition() Position {
	return Position{
		Offset: s.pos,
		Line:   s.line,
		Column: s.column,
	}
}

// ScanReferences is a convenience wrapper returning all references in source
func ScanReferences(source string, logger *zap.Logger) []Reference {
	return NewScanner(source, logger).All()
}
