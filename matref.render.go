package matref

import (
	"fmt"
	"strings"
)

// RenderMaterial computes the replacement text for one resolved token.
// The second result is false when the material type has no substitution
// rule; the token must then be kept as written.
func RenderMaterial(tok ReferenceToken, m *Material) (string, bool) {
	if m == nil {
		return "", false
	}

	switch m.Type {
	case MaterialTypeText:
		c, _ := m.Content.(TextContent)
		return c.Text, true
	case MaterialTypeImage:
		c, _ := m.Content.(ImageContent)
		if c.Description != "" {
			return c.Description, true
		}
		return fmt.Sprintf(FmtImagePlaceholder, tok.Label), true
	case MaterialTypeReference:
		c, _ := m.Content.(ReferenceContent)
		if c.ReferenceType != "" {
			return fmt.Sprintf(FmtReferencePlaceholder, c.ReferenceType), true
		}
		return c.Content, true
	default:
		// mixed and unknown types have no rule yet
		return "", false
	}
}

// RenderPrompt replaces every resolved token in text with its material's
// rendering. Unresolved tokens and all text between tokens are copied
// through byte for byte. Replacement is by token span, so identical tokens
// appearing several times are each replaced exactly once.
func RenderPrompt(text string, materials map[string]*Material) string {
	rendered, _ := renderPrompt(text, materials)
	return rendered
}

// Render renders each prompt independently against the same material map.
// The result has the same length and order as prompts.
func Render(prompts []string, materials map[string]*Material) []string {
	rendered, _ := renderPrompts(prompts, materials)
	return rendered
}

// renderStats counts token outcomes across a render pass
type renderStats struct {
	resolved   int
	unresolved int
}

func (s *renderStats) add(other renderStats) {
	s.resolved += other.resolved
	s.unresolved += other.unresolved
}

func renderPrompts(prompts []string, materials map[string]*Material) ([]string, renderStats) {
	var stats renderStats
	result := make([]string, len(prompts))
	for i, prompt := range prompts {
		rendered, promptStats := renderPrompt(prompt, materials)
		result[i] = rendered
		stats.add(promptStats)
	}
	return result, stats
}

func renderPrompt(text string, materials map[string]*Material) (string, renderStats) {
	var (
		stats renderStats
		b     strings.Builder
		last  int
	)

	for tok := range Tokens(text) {
		replacement, ok := RenderMaterial(tok, materials[tok.MaterialID])
		if !ok {
			stats.unresolved++
			continue
		}
		stats.resolved++

		if b.Len() == 0 && last == 0 {
			b.Grow(len(text))
		}
		b.WriteString(text[last:tok.Position.Offset])
		b.WriteString(replacement)
		last = tok.End
	}

	if stats.resolved == 0 {
		return text, stats
	}
	b.WriteString(text[last:])
	return b.String(), stats
}
