package matref

import (
	"iter"
	"strings"

	"github.com/itsatony/go-matref/internal"
)

// Position is a location in prompt text.
type Position = internal.Position

// ReferenceToken is one @[label](materialId) occurrence in a prompt.
// Raw equals text[Position.Offset:End] of the text it was scanned from.
type ReferenceToken struct {
	Raw        string   `json:"raw"`
	Label      string   `json:"label"`
	MaterialID string   `json:"material_id"`
	Position   Position `json:"position"`
	End        int      `json:"end"`
}

// Tokens returns a lazy sequence of the reference tokens in text, left to right.
// The sequence can be ranged over any number of times and always yields the
// same tokens.
func Tokens(text string) iter.Seq[ReferenceToken] {
	return func(yield func(ReferenceToken) bool) {
		scanner := internal.NewScanner(text, nil)
		for {
			ref, ok := scanner.Next()
			if !ok {
				return
			}
			if !yield(tokenFromReference(ref)) {
				return
			}
		}
	}
}

// ExtractTokens returns all reference tokens in text, left to right
func ExtractTokens(text string) []ReferenceToken {
	var tokens []ReferenceToken
	for tok := range Tokens(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// ExtractMaterialIDs returns the material IDs referenced in text in order of
// appearance. Duplicates are kept.
func ExtractMaterialIDs(text string) []string {
	var ids []string
	for tok := range Tokens(text) {
		ids = append(ids, tok.MaterialID)
	}
	return ids
}

// CollectMaterialIDs returns the distinct material IDs referenced across all
// texts, ordered by first appearance.
func CollectMaterialIDs(texts ...string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, text := range texts {
		for tok := range Tokens(text) {
			if _, ok := seen[tok.MaterialID]; ok {
				continue
			}
			seen[tok.MaterialID] = struct{}{}
			ids = append(ids, tok.MaterialID)
		}
	}
	return ids
}

// HasReferences reports whether text contains at least one reference token
func HasReferences(text string) bool {
	for range Tokens(text) {
		return true
	}
	return false
}

// FormatReference builds the token for a material. It rejects labels and IDs
// that the token grammar cannot carry, so the result always scans back to
// the same label and ID.
func FormatReference(label, materialID string) (string, error) {
	switch {
	case label == "":
		return "", NewReferenceSyntaxError(ErrMsgEmptyLabel, label, materialID)
	case materialID == "":
		return "", NewReferenceSyntaxError(ErrMsgEmptyMaterialID, label, materialID)
	case strings.Contains(label, RefLabelEnd):
		return "", NewReferenceSyntaxError(ErrMsgInvalidLabel, label, materialID)
	case strings.Contains(materialID, RefClose):
		return "", NewReferenceSyntaxError(ErrMsgInvalidMaterialID, label, materialID)
	}
	return RefOpen + label + RefSeparator + materialID + RefClose, nil
}

func tokenFromReference(ref internal.Reference) ReferenceToken {
	return ReferenceToken{
		Raw:        ref.Raw,
		Label:      ref.Label,
		MaterialID: ref.ID,
		Position:   ref.Position,
		End:        ref.End,
	}
}
