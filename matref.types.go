package matref

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// MaterialType identifies the kind of payload a material carries.
type MaterialType string

// Known material types
const (
	MaterialTypeText      MaterialType = MaterialTypeNameText
	MaterialTypeImage     MaterialType = MaterialTypeNameImage
	MaterialTypeMixed     MaterialType = MaterialTypeNameMixed
	MaterialTypeReference MaterialType = MaterialTypeNameReference
)

// IsKnown reports whether t is one of the types this package understands
func (t MaterialType) IsKnown() bool {
	switch t {
	case MaterialTypeText, MaterialTypeImage, MaterialTypeMixed, MaterialTypeReference:
		return true
	default:
		return false
	}
}

// ParseMaterialType converts a type name into a MaterialType
func ParseMaterialType(name string) (MaterialType, error) {
	t := MaterialType(strings.TrimSpace(name))
	if !t.IsKnown() {
		return "", NewInvalidMaterialTypeError(name)
	}
	return t, nil
}

// Content is the type-dependent payload of a material.
// The concrete variant is fixed by the material's Type.
type Content interface {
	materialContent()
}

// TextContent is the payload of a text material.
type TextContent struct {
	Text      string         `json:"text"`
	Variables map[string]any `json:"variables,omitempty"`
}

// ImageContent is the payload of an image material.
type ImageContent struct {
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Description string `json:"description,omitempty"`
}

// ReferenceContent is the payload of a reference material.
// ReferenceType is the subtype (e.g. "style", "account").
type ReferenceContent struct {
	ReferenceType string `json:"reference_type,omitempty"`
	Content       string `json:"content,omitempty"`
	Account       string `json:"account,omitempty"`
}

// GenericContent holds payloads without a fixed shape: mixed materials
// and types this version does not know.
type GenericContent struct {
	Fields map[string]any
}

func (TextContent) materialContent()      {}
func (ImageContent) materialContent()     {}
func (ReferenceContent) materialContent() {}
func (GenericContent) materialContent()   {}

// MarshalJSON encodes the fields as a flat object.
func (c GenericContent) MarshalJSON() ([]byte, error) {
	if c.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.Fields)
}

// UnmarshalJSON decodes a flat object into Fields.
func (c *GenericContent) UnmarshalJSON(data []byte) error {
	c.Fields = nil
	if isJSONNull(data) {
		return nil
	}
	return json.Unmarshal(data, &c.Fields)
}

// Material is a saved, reusable content unit referenced by ID.
type Material struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        MaterialType `json:"type"`
	Category    string       `json:"category,omitempty"`
	Content     Content      `json:"content"`
	Tags        []string     `json:"tags"`
	Description string       `json:"description"`
	CreatedAt   Timestamp    `json:"created_at"`
	UpdatedAt   Timestamp    `json:"updated_at"`
}

// materialJSON mirrors Material with the content left raw for decoding.
type materialJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        MaterialType    `json:"type"`
	Category    string          `json:"category,omitempty"`
	Content     json.RawMessage `json:"content"`
	Tags        []string        `json:"tags"`
	Description string          `json:"description"`
	CreatedAt   Timestamp       `json:"created_at"`
	UpdatedAt   Timestamp       `json:"updated_at"`
}

// UnmarshalJSON decodes a material and picks the content variant from its type.
func (m *Material) UnmarshalJSON(data []byte) error {
	var raw materialJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	content, err := DecodeContent(raw.Type, raw.Content)
	if err != nil {
		return err
	}

	*m = Material{
		ID:          raw.ID,
		Name:        raw.Name,
		Type:        raw.Type,
		Category:    raw.Category,
		Content:     content,
		Tags:        raw.Tags,
		Description: raw.Description,
		CreatedAt:   raw.CreatedAt,
		UpdatedAt:   raw.UpdatedAt,
	}
	return nil
}

// DecodeContent decodes a raw content payload into the variant for materialType.
// Empty or null payloads decode to the zero value of the variant.
func DecodeContent(materialType MaterialType, raw json.RawMessage) (Content, error) {
	empty := len(bytes.TrimSpace(raw)) == 0 || isJSONNull(raw)

	switch materialType {
	case MaterialTypeText:
		var c TextContent
		if !empty {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, NewContentDecodeError(materialType, err)
			}
		}
		return c, nil
	case MaterialTypeImage:
		var c ImageContent
		if !empty {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, NewContentDecodeError(materialType, err)
			}
		}
		return c, nil
	case MaterialTypeReference:
		var c ReferenceContent
		if !empty {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, NewContentDecodeError(materialType, err)
			}
		}
		return c, nil
	default:
		var c GenericContent
		if !empty {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, NewContentDecodeError(materialType, err)
			}
		}
		return c, nil
	}
}

// contentMatchesType reports whether c is the variant expected for t
func contentMatchesType(t MaterialType, c Content) bool {
	switch c.(type) {
	case TextContent:
		return t == MaterialTypeText
	case ImageContent:
		return t == MaterialTypeImage
	case ReferenceContent:
		return t == MaterialTypeReference
	case GenericContent:
		return t == MaterialTypeMixed || !t.IsKnown()
	default:
		return false
	}
}

// Clone returns a deep copy of the material
func (m *Material) Clone() *Material {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Tags = copyStringSlice(m.Tags)
	switch c := m.Content.(type) {
	case TextContent:
		c.Variables = copyAnyMap(c.Variables)
		clone.Content = c
	case GenericContent:
		c.Fields = copyAnyMap(c.Fields)
		clone.Content = c
	}
	return &clone
}

// Timestamp is a time that also accepts the zone-less ISO-8601 form
// some stores emit ("2006-01-02T15:04:05.999999").
type Timestamp struct {
	time.Time
}

// Accepted timestamp layouts, tried in order
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// NewTimestamp wraps t
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON encodes the time as RFC 3339; the zero time encodes as "".
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts RFC 3339, zone-less ISO-8601, "" and null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTimestamp parses s with the accepted layouts. Empty input yields the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	var firstErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			return parsed, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func isJSONNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// copyStringSlice creates a copy of a string slice.
func copyStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	result := make([]string, len(s))
	copy(result, s)
	return result
}

// copyAnyMap creates a shallow copy of a map.
func copyAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}
