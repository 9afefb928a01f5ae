package matref

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ListOptions selects one page of materials.
type ListOptions struct {
	Type     MaterialType
	Tags     []string
	Page     int
	PageSize int
}

// normalize applies the pagination defaults and bounds
func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = DefaultPage
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	return o
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// NewPagination computes the page counters for total items.
func NewPagination(page, pageSize, total int) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    page*pageSize < total,
	}
}

// MaterialPage is one page of materials.
type MaterialPage struct {
	Items      []*Material `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// MaterialUpdate carries the mutable fields of a material. Nil fields are left unchanged.
type MaterialUpdate struct {
	Name        *string
	Category    *string
	Content     Content
	Tags        []string
	Description *string
}

// Service is the material store: CRUD with validation over a MaterialStorage,
// plus store-side reference processing. It implements ReferenceStore.
type Service struct {
	storage MaterialStorage
	logger  *zap.Logger
}

// NewService creates a service over storage.
func NewService(storage MaterialStorage, logger *zap.Logger) (*Service, error) {
	if storage == nil {
		return nil, &StorageError{Message: ErrMsgNilStorage}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{storage: storage, logger: logger}, nil
}

// Storage returns the underlying storage.
func (s *Service) Storage() MaterialStorage {
	return s.storage
}

// ValidateMaterial checks the fields required for m's type.
func ValidateMaterial(m *Material) error {
	if m == nil {
		return &StorageError{Message: ErrMsgNilMaterial}
	}
	if strings.TrimSpace(m.Name) == "" {
		return NewInvalidMaterialError(ErrMsgMissingName, m.Type)
	}
	if _, err := ParseMaterialType(string(m.Type)); err != nil {
		return err
	}
	if m.Content == nil {
		return NewInvalidMaterialError(ErrMsgMissingContent, m.Type)
	}
	if !contentMatchesType(m.Type, m.Content) {
		return NewInvalidMaterialError(ErrMsgContentTypeMismatch, m.Type)
	}

	switch c := m.Content.(type) {
	case TextContent:
		if c.Text == "" {
			return NewInvalidMaterialError(ErrMsgMissingText, m.Type)
		}
	case ImageContent:
		if c.URL == "" {
			return NewInvalidMaterialError(ErrMsgMissingImageURL, m.Type)
		}
	case ReferenceContent:
		if c.ReferenceType == "" && c.Content == "" {
			return NewInvalidMaterialError(ErrMsgMissingReferenceData, m.Type)
		}
	}
	return nil
}

// CreateMaterial validates and stores m, returning its ID.
func (s *Service) CreateMaterial(ctx context.Context, m *Material) (string, error) {
	if err := ValidateMaterial(m); err != nil {
		return "", err
	}
	stored := m.Clone()
	stored.CreatedAt = Timestamp{}
	if err := s.storage.Save(ctx, stored); err != nil {
		return "", err
	}
	s.logger.Info(LogMsgMaterialSaved, zap.String(LogFieldMaterialID, stored.ID))
	return stored.ID, nil
}

// UpdateMaterial applies update to the stored material. The material type never
// changes, so new content is validated against the stored type.
func (s *Service) UpdateMaterial(ctx context.Context, id string, update MaterialUpdate) (*Material, error) {
	existing, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := existing.Clone()
	if update.Name != nil {
		updated.Name = *update.Name
	}
	if update.Category != nil {
		updated.Category = *update.Category
	}
	if update.Content != nil {
		updated.Content = update.Content
	}
	if update.Tags != nil {
		updated.Tags = copyStringSlice(update.Tags)
	}
	if update.Description != nil {
		updated.Description = *update.Description
	}

	if err := ValidateMaterial(updated); err != nil {
		return nil, err
	}
	if err := s.storage.Save(ctx, updated); err != nil {
		return nil, err
	}
	s.logger.Info(LogMsgMaterialSaved, zap.String(LogFieldMaterialID, id))
	return updated, nil
}

// DeleteMaterial removes a material.
func (s *Service) DeleteMaterial(ctx context.Context, id string) error {
	if err := s.storage.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(LogMsgMaterialDeleted, zap.String(LogFieldMaterialID, id))
	return nil
}

// GetMaterial returns a material by ID.
func (s *Service) GetMaterial(ctx context.Context, id string) (*Material, error) {
	return s.storage.Get(ctx, id)
}

// ListMaterials returns one page of materials, newest first.
func (s *Service) ListMaterials(ctx context.Context, opts ListOptions) (*MaterialPage, error) {
	opts = opts.normalize()
	query := &MaterialQuery{
		Type:   opts.Type,
		Tags:   opts.Tags,
		Limit:  opts.PageSize,
		Offset: (opts.Page - 1) * opts.PageSize,
	}

	total, err := s.storage.Count(ctx, query)
	if err != nil {
		return nil, err
	}
	items, err := s.storage.List(ctx, query)
	if err != nil {
		return nil, err
	}
	return &MaterialPage{
		Items:      items,
		Pagination: NewPagination(opts.Page, opts.PageSize, total),
	}, nil
}

// SearchMaterials returns every material matching keyword as a single page.
func (s *Service) SearchMaterials(ctx context.Context, keyword string) (*MaterialPage, error) {
	items, err := s.storage.Search(ctx, keyword)
	if err != nil {
		return nil, err
	}
	return &MaterialPage{
		Items:      items,
		Pagination: NewPagination(SearchResultsPage, len(items), len(items)),
	}, nil
}

// GetMaterialsByIDs returns the materials found for ids, in request order.
func (s *Service) GetMaterialsByIDs(ctx context.Context, ids []string) ([]*Material, error) {
	if len(ids) == 0 {
		return nil, NewEmptyMaterialIDsError()
	}
	return s.storage.GetByIDs(ctx, ids)
}

// Tags returns every distinct tag, sorted.
func (s *Service) Tags(ctx context.Context) ([]string, error) {
	return s.storage.Tags(ctx)
}

// ProcessReferences resolves the requested materials plus any mentioned in
// req.BasePrompt and assembles the store-side enhanced prompt.
func (s *Service) ProcessReferences(ctx context.Context, req *ResolutionRequest) (*ResolutionData, error) {
	if req == nil || len(req.MaterialIDs) == 0 {
		return nil, NewEmptyMaterialIDsError()
	}

	ids := uniqueStrings(append(copyStringSlice(req.MaterialIDs), ExtractMaterialIDs(req.BasePrompt)...))
	materials, err := s.storage.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Material, len(materials))
	for _, m := range materials {
		byID[m.ID] = m
	}

	var b strings.Builder
	b.WriteString(replaceMentions(req.BasePrompt, byID))

	images := []string{}
	for _, m := range materials {
		switch c := m.Content.(type) {
		case TextContent:
			if c.Text != "" {
				fmt.Fprintf(&b, FmtEnhancedTextSection, m.Name, c.Text)
			}
		case ImageContent:
			if c.URL != "" {
				images = append(images, c.URL)
			}
		case ReferenceContent:
			if c.ReferenceType != "" {
				fmt.Fprintf(&b, FmtEnhancedRefSection, m.Name, c.ReferenceType)
			}
			if c.Content != "" {
				fmt.Fprintf(&b, FmtEnhancedRefContent, c.Content)
			}
			if c.Account != "" {
				fmt.Fprintf(&b, FmtEnhancedRefAccount, c.Account)
			}
		}
	}

	s.logger.Debug(LogMsgReferencesBuilt,
		zap.Int(LogFieldMaterialIDs, len(ids)),
		zap.Int(LogFieldResolved, len(materials)),
		zap.Int(LogFieldImages, len(images)),
	)

	return &ResolutionData{
		EnhancedPrompt:  strings.TrimSpace(b.String()),
		ReferenceImages: images,
		StyleParams:     map[string]any{},
		MaterialsUsed:   materials,
	}, nil
}

// replaceMentions swaps mentions of known materials for a short citation.
// Mentions of unknown IDs stay as written.
func replaceMentions(text string, materials map[string]*Material) string {
	var (
		b    strings.Builder
		last int
	)
	for tok := range Tokens(text) {
		if _, ok := materials[tok.MaterialID]; !ok {
			continue
		}
		b.WriteString(text[last:tok.Position.Offset])
		fmt.Fprintf(&b, FmtMentionReplacement, tok.Label)
		last = tok.End
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}
