package matref

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateMaterialID returns a new material ID ("mat_" + 12 hex characters).
func GenerateMaterialID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return MaterialIDPrefix + hex[:MaterialIDHexLength]
}

// stampForSave fills the generated fields of m before it is stored.
// existing is the currently stored version, or nil for an insert.
func stampForSave(m *Material, existing *Material, now time.Time) {
	if m.ID == "" {
		m.ID = GenerateMaterialID()
	}
	switch {
	case existing != nil && !existing.CreatedAt.IsZero():
		m.CreatedAt = existing.CreatedAt
	case m.CreatedAt.IsZero():
		m.CreatedAt = NewTimestamp(now)
	}
	m.UpdatedAt = NewTimestamp(now)
	if m.Tags == nil {
		m.Tags = []string{}
	}
}

// matchesMaterialQuery checks the type and tag filters of query.
// Tags match when the material carries any of them.
func matchesMaterialQuery(m *Material, query *MaterialQuery) bool {
	if query == nil {
		return true
	}
	if query.Type != "" && m.Type != query.Type {
		return false
	}
	if len(query.Tags) > 0 {
		for _, tag := range query.Tags {
			if containsString(m.Tags, tag) {
				return true
			}
		}
		return false
	}
	return true
}

// matchesKeyword reports whether name, description or a tag contains keyword.
func matchesKeyword(m *Material, keyword string) bool {
	kw := strings.ToLower(keyword)
	if strings.Contains(strings.ToLower(m.Name), kw) ||
		strings.Contains(strings.ToLower(m.Description), kw) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), kw) {
			return true
		}
	}
	return false
}

// sortByUpdatedDesc orders materials newest first, ties broken by ID.
func sortByUpdatedDesc(materials []*Material) {
	sort.SliceStable(materials, func(i, j int) bool {
		ti, tj := materials[i].UpdatedAt.Time, materials[j].UpdatedAt.Time
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return materials[i].ID < materials[j].ID
	})
}

// applyPage applies offset and limit to an already sorted slice.
func applyPage(materials []*Material, offset, limit int) []*Material {
	if offset > 0 {
		if offset >= len(materials) {
			return []*Material{}
		}
		materials = materials[offset:]
	}
	if limit > 0 && len(materials) > limit {
		materials = materials[:limit]
	}
	return materials
}

// uniqueStrings drops empty and repeated entries, keeping first occurrences.
func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// sortedTags collects the distinct tags of materials in sorted order.
func sortedTags(materials []*Material) []string {
	set := make(map[string]struct{})
	for _, m := range materials {
		for _, tag := range m.Tags {
			set[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// containsString checks if a slice contains a string.
func containsString(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}
