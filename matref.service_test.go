package matref

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// newTestService creates a service over fresh memory storage
func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService(NewMemoryStorage(), zap.NewNop())
	require.NoError(t, err)
	return service
}

func strPtr(s string) *string { return &s }

func TestNewService(t *testing.T) {
	t.Run("nil storage", func(t *testing.T) {
		_, err := NewService(nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgNilStorage)
	})

	t.Run("nil logger defaults to nop", func(t *testing.T) {
		storage := NewMemoryStorage()
		service, err := NewService(storage, nil)
		require.NoError(t, err)
		assert.NotNil(t, service.logger)
		assert.Same(t, storage, service.Storage())
	})
}

func TestValidateMaterial(t *testing.T) {
	tests := []struct {
		name    string
		m       *Material
		wantMsg string
	}{
		{
			name: "valid text",
			m:    &Material{Name: "n", Type: MaterialTypeText, Content: TextContent{Text: "t"}},
		},
		{
			name: "valid image",
			m:    &Material{Name: "n", Type: MaterialTypeImage, Content: ImageContent{URL: "u"}},
		},
		{
			name: "valid reference with type only",
			m:    &Material{Name: "n", Type: MaterialTypeReference, Content: ReferenceContent{ReferenceType: "style"}},
		},
		{
			name: "valid reference with content only",
			m:    &Material{Name: "n", Type: MaterialTypeReference, Content: ReferenceContent{Content: "c"}},
		},
		{
			name: "valid mixed",
			m:    &Material{Name: "n", Type: MaterialTypeMixed, Content: GenericContent{Fields: map[string]any{"a": 1}}},
		},
		{
			name:    "blank name",
			m:       &Material{Name: "  ", Type: MaterialTypeText, Content: TextContent{Text: "t"}},
			wantMsg: ErrMsgMissingName,
		},
		{
			name:    "unknown type",
			m:       &Material{Name: "n", Type: "video", Content: GenericContent{}},
			wantMsg: ErrMsgInvalidMaterialType,
		},
		{
			name:    "nil content",
			m:       &Material{Name: "n", Type: MaterialTypeText},
			wantMsg: ErrMsgMissingContent,
		},
		{
			name:    "content type mismatch",
			m:       &Material{Name: "n", Type: MaterialTypeText, Content: ImageContent{URL: "u"}},
			wantMsg: ErrMsgContentTypeMismatch,
		},
		{
			name:    "empty text",
			m:       &Material{Name: "n", Type: MaterialTypeText, Content: TextContent{}},
			wantMsg: ErrMsgMissingText,
		},
		{
			name:    "empty image url",
			m:       &Material{Name: "n", Type: MaterialTypeImage, Content: ImageContent{Description: "d"}},
			wantMsg: ErrMsgMissingImageURL,
		},
		{
			name:    "empty reference",
			m:       &Material{Name: "n", Type: MaterialTypeReference, Content: ReferenceContent{Account: "@a"}},
			wantMsg: ErrMsgMissingReferenceData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMaterial(tt.m)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err), "expected validation error, got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("nil material", func(t *testing.T) {
		err := ValidateMaterial(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgNilMaterial)
	})
}

func TestService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)
	past := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

	input := &Material{
		ID:        "mat_caller0001",
		Name:      "brand",
		Type:      MaterialTypeText,
		Content:   TextContent{Text: "Acme"},
		CreatedAt: NewTimestamp(past),
	}
	id, err := service.CreateMaterial(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "mat_caller0001", id)

	got, err := service.GetMaterial(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "brand", got.Name)
	assert.False(t, got.CreatedAt.Equal(past), "created_at is set by the store")
	assert.True(t, input.UpdatedAt.IsZero(), "input must not be modified")

	_, err = service.CreateMaterial(ctx, &Material{Name: "bad", Type: MaterialTypeText, Content: TextContent{}})
	assert.True(t, IsValidation(err))

	_, err = service.GetMaterial(ctx, "mat_missing")
	assert.True(t, IsNotFound(err))
}

func TestService_UpdateMaterial(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	id, err := service.CreateMaterial(ctx, &Material{
		Name:        "logo",
		Type:        MaterialTypeImage,
		Content:     ImageContent{URL: "https://cdn/v1.png"},
		Tags:        []string{"brand"},
		Description: "old",
	})
	require.NoError(t, err)

	t.Run("partial update", func(t *testing.T) {
		updated, err := service.UpdateMaterial(ctx, id, MaterialUpdate{
			Description: strPtr("new"),
			Tags:        []string{"brand", "v2"},
		})
		require.NoError(t, err)
		assert.Equal(t, "logo", updated.Name)
		assert.Equal(t, "new", updated.Description)
		assert.Equal(t, []string{"brand", "v2"}, updated.Tags)
		assert.Equal(t, ImageContent{URL: "https://cdn/v1.png"}, updated.Content)
	})

	t.Run("content must match stored type", func(t *testing.T) {
		_, err := service.UpdateMaterial(ctx, id, MaterialUpdate{Content: TextContent{Text: "x"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgContentTypeMismatch)

		got, err := service.GetMaterial(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ImageContent{URL: "https://cdn/v1.png"}, got.Content)
	})

	t.Run("blank name rejected", func(t *testing.T) {
		_, err := service.UpdateMaterial(ctx, id, MaterialUpdate{Name: strPtr("")})
		assert.True(t, IsValidation(err))
	})

	t.Run("missing material", func(t *testing.T) {
		_, err := service.UpdateMaterial(ctx, "mat_missing", MaterialUpdate{Name: strPtr("x")})
		assert.True(t, IsNotFound(err))
	})
}

func TestService_DeleteMaterial(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.InfoLevel)
	service, err := NewService(NewMemoryStorage(), zap.New(core))
	require.NoError(t, err)

	id, err := service.CreateMaterial(ctx, &Material{Name: "n", Type: MaterialTypeText, Content: TextContent{Text: "t"}})
	require.NoError(t, err)

	require.NoError(t, service.DeleteMaterial(ctx, id))
	assert.True(t, IsNotFound(service.DeleteMaterial(ctx, id)))

	assert.Equal(t, 1, logs.FilterMessage(LogMsgMaterialSaved).Len())
	deleted := logs.FilterMessage(LogMsgMaterialDeleted).All()
	require.Len(t, deleted, 1)
	assert.Equal(t, id, deleted[0].ContextMap()[LogFieldMaterialID])
}

func TestService_ListMaterials(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)
	for i := 0; i < 5; i++ {
		materialType, content := MaterialTypeText, Content(TextContent{Text: "t"})
		if i%2 == 1 {
			materialType, content = MaterialTypeImage, ImageContent{URL: "u"}
		}
		_, err := service.CreateMaterial(ctx, &Material{Name: "m", Type: materialType, Content: content})
		require.NoError(t, err)
	}

	t.Run("defaults", func(t *testing.T) {
		page, err := service.ListMaterials(ctx, ListOptions{})
		require.NoError(t, err)
		assert.Len(t, page.Items, 5)
		assert.Equal(t, Pagination{Page: 1, PageSize: DefaultPageSize, Total: 5, TotalPages: 1}, page.Pagination)
	})

	t.Run("second page", func(t *testing.T) {
		page, err := service.ListMaterials(ctx, ListOptions{Page: 2, PageSize: 2})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, Pagination{Page: 2, PageSize: 2, Total: 5, TotalPages: 3, HasMore: true}, page.Pagination)
	})

	t.Run("type filter", func(t *testing.T) {
		page, err := service.ListMaterials(ctx, ListOptions{Type: MaterialTypeImage})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, 2, page.Pagination.Total)
	})

	t.Run("page size capped", func(t *testing.T) {
		page, err := service.ListMaterials(ctx, ListOptions{PageSize: 1000})
		require.NoError(t, err)
		assert.Equal(t, MaxPageSize, page.Pagination.PageSize)
	})
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		page, size, total int
		want              Pagination
	}{
		{1, 20, 0, Pagination{Page: 1, PageSize: 20}},
		{1, 10, 10, Pagination{Page: 1, PageSize: 10, Total: 10, TotalPages: 1}},
		{1, 10, 11, Pagination{Page: 1, PageSize: 10, Total: 11, TotalPages: 2, HasMore: true}},
		{3, 10, 25, Pagination{Page: 3, PageSize: 10, Total: 25, TotalPages: 3}},
		{1, 0, 0, Pagination{Page: 1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewPagination(tt.page, tt.size, tt.total))
	}
}

func TestService_SearchAndTags(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)
	_, err := service.CreateMaterial(ctx, &Material{Name: "Summer", Type: MaterialTypeText, Content: TextContent{Text: "t"}, Tags: []string{"season"}})
	require.NoError(t, err)
	_, err = service.CreateMaterial(ctx, &Material{Name: "Winter", Type: MaterialTypeText, Content: TextContent{Text: "t"}, Tags: []string{"season", "cold"}})
	require.NoError(t, err)

	page, err := service.SearchMaterials(ctx, "summ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Summer"}, materialNames(page.Items))
	assert.Equal(t, Pagination{Page: 1, PageSize: 1, Total: 1, TotalPages: 1}, page.Pagination)

	tags, err := service.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cold", "season"}, tags)
}

func TestService_GetMaterialsByIDs(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)
	id, err := service.CreateMaterial(ctx, &Material{Name: "n", Type: MaterialTypeText, Content: TextContent{Text: "t"}})
	require.NoError(t, err)

	got, err := service.GetMaterialsByIDs(ctx, []string{"mat_missing", id})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)

	_, err = service.GetMaterialsByIDs(ctx, nil)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestService_ProcessReferences(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)
	seed := []*Material{
		{ID: "mat_text000001", Name: "Brand", Type: MaterialTypeText, Content: TextContent{Text: "Acme builds rockets"}},
		{ID: "mat_image00001", Name: "Logo", Type: MaterialTypeImage, Content: ImageContent{URL: "https://cdn/logo.png"}},
		{ID: "mat_ref0000001", Name: "Tone", Type: MaterialTypeReference, Content: ReferenceContent{ReferenceType: "style", Content: "playful", Account: "@acme"}},
	}
	for _, m := range seed {
		_, err := service.CreateMaterial(ctx, m)
		require.NoError(t, err)
	}

	t.Run("assembles enhanced prompt", func(t *testing.T) {
		data, err := service.ProcessReferences(ctx, &ResolutionRequest{
			MaterialIDs: []string{"mat_text000001", "mat_image00001", "mat_ref0000001"},
			BasePrompt:  "Write about @[brand](mat_text000001) with @[logo](mat_image00001) and @[x](mat_missing)",
		})
		require.NoError(t, err)

		want := "Write about [material: brand] with [material: logo] and @[x](mat_missing)" +
			"\n\n[reference info: Brand]\nAcme builds rockets" +
			"\n\n[reference: Tone] type: style\nplayful\naccount: @acme"
		assert.Equal(t, want, data.EnhancedPrompt)
		assert.Equal(t, []string{"https://cdn/logo.png"}, data.ReferenceImages)
		assert.Equal(t, map[string]any{}, data.StyleParams)
		assert.Len(t, data.MaterialsUsed, 3)
	})

	t.Run("ids mentioned in base prompt are included", func(t *testing.T) {
		data, err := service.ProcessReferences(ctx, &ResolutionRequest{
			MaterialIDs: []string{"mat_image00001"},
			BasePrompt:  "See @[brand](mat_text000001)",
		})
		require.NoError(t, err)
		require.Len(t, data.MaterialsUsed, 2)
		assert.Equal(t, "mat_image00001", data.MaterialsUsed[0].ID)
		assert.Equal(t, "mat_text000001", data.MaterialsUsed[1].ID)
	})

	t.Run("nothing found", func(t *testing.T) {
		data, err := service.ProcessReferences(ctx, &ResolutionRequest{
			MaterialIDs: []string{"mat_missing"},
			BasePrompt:  "  plain  ",
		})
		require.NoError(t, err)
		assert.Equal(t, "plain", data.EnhancedPrompt)
		assert.Empty(t, data.ReferenceImages)
		assert.Empty(t, data.MaterialsUsed)
	})

	t.Run("empty ids rejected", func(t *testing.T) {
		_, err := service.ProcessReferences(ctx, &ResolutionRequest{BasePrompt: "@[a](mat_text000001)"})
		require.Error(t, err)
		assert.True(t, IsValidation(err))

		_, err = service.ProcessReferences(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("storage failure propagates", func(t *testing.T) {
		storage := NewMemoryStorage()
		require.NoError(t, storage.Close())
		broken, err := NewService(storage, nil)
		require.NoError(t, err)

		_, err = broken.ProcessReferences(ctx, &ResolutionRequest{MaterialIDs: []string{"mat_1"}})
		require.Error(t, err)
		var storageErr *StorageError
		assert.True(t, errors.As(err, &storageErr))
	})
}

func TestReplaceMentions(t *testing.T) {
	known := map[string]*Material{"mat_1": {ID: "mat_1"}}

	assert.Equal(t, "no refs", replaceMentions("no refs", known))
	assert.Equal(t, "[material: a] and [material: b]", replaceMentions("@[a](mat_1) and @[b](mat_1)", known))
	assert.Equal(t, "keep @[z](mat_2)", replaceMentions("keep @[z](mat_2)", known))
}
