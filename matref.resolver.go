package matref

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ResolutionRequest is the batched lookup sent to the material store.
type ResolutionRequest struct {
	MaterialIDs []string `json:"material_ids"`
	BasePrompt  string   `json:"base_prompt"`
}

// ResolutionData is what the store computed for one batch.
type ResolutionData struct {
	EnhancedPrompt  string         `json:"enhanced_prompt"`
	ReferenceImages []string       `json:"reference_images"`
	StyleParams     map[string]any `json:"style_params"`
	MaterialsUsed   []*Material    `json:"materials_used"`
}

// ReferenceStore resolves a batch of material IDs in one call.
// It is the only collaborator of the engine that crosses the network.
type ReferenceStore interface {
	ProcessReferences(ctx context.Context, req *ResolutionRequest) (*ResolutionData, error)
}

// Resolution is the request-scoped result of resolving one batch.
type Resolution struct {
	// Materials maps material ID to the resolved material.
	// IDs the store did not find are absent.
	Materials map[string]*Material

	// ReferenceImages are image URLs the store derived for the batch.
	ReferenceImages []string

	// StyleParams are style parameters the store derived for the batch.
	StyleParams map[string]any
}

// emptyResolution is returned when a batch references no materials
func emptyResolution() *Resolution {
	return &Resolution{
		Materials:       map[string]*Material{},
		ReferenceImages: []string{},
		StyleParams:     map[string]any{},
	}
}

// Resolver turns the material references of a batch of prompts into materials.
// It holds no state between calls; every call reflects the store as it is.
type Resolver struct {
	store  ReferenceStore
	logger *zap.Logger
}

// NewResolver creates a resolver backed by store
func NewResolver(store ReferenceStore, logger *zap.Logger) (*Resolver, error) {
	if store == nil {
		return nil, errors.New(ErrMsgNilReferenceStore)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}, nil
}

// ResolveBatch collects the distinct material IDs across prompts and resolves
// them with a single store call. When no prompt references a material the
// store is not contacted. On failure no partial mapping is returned.
func (r *Resolver) ResolveBatch(ctx context.Context, prompts []string) (*Resolution, error) {
	ids := CollectMaterialIDs(prompts...)
	if len(ids) == 0 {
		r.logger.Debug(LogMsgResolveSkipped, zap.Int(LogFieldPrompts, len(prompts)))
		return emptyResolution(), nil
	}

	r.logger.Debug(LogMsgResolveStart,
		zap.Int(LogFieldPrompts, len(prompts)),
		zap.Int(LogFieldMaterialIDs, len(ids)))

	data, err := r.store.ProcessReferences(ctx, &ResolutionRequest{
		MaterialIDs: ids,
		BasePrompt:  "",
	})
	if err != nil {
		resErr := classifyStoreError(ctx, err)
		r.logger.Warn(LogMsgResolveFailed,
			zap.String(LogFieldErrorKind, resErr.Kind.String()),
			zap.Error(resErr))
		return nil, resErr
	}
	if data == nil {
		return nil, NewStoreRejectedError(ErrMsgEmptyStoreResponse, 0)
	}

	resolution := &Resolution{
		Materials:       make(map[string]*Material, len(data.MaterialsUsed)),
		ReferenceImages: data.ReferenceImages,
		StyleParams:     data.StyleParams,
	}
	if resolution.ReferenceImages == nil {
		resolution.ReferenceImages = []string{}
	}
	if resolution.StyleParams == nil {
		resolution.StyleParams = map[string]any{}
	}

	for _, m := range data.MaterialsUsed {
		if m == nil {
			continue
		}
		if _, exists := resolution.Materials[m.ID]; exists {
			r.logger.Debug(LogMsgDuplicateMaterial, zap.String(LogFieldMaterialID, m.ID))
			continue
		}
		resolution.Materials[m.ID] = m
	}

	r.logger.Debug(LogMsgResolveComplete,
		zap.Int(LogFieldMaterialIDs, len(ids)),
		zap.Int(LogFieldResolved, len(resolution.Materials)),
		zap.Int(LogFieldImages, len(resolution.ReferenceImages)))

	return resolution, nil
}

// classifyStoreError maps an arbitrary store error onto a ResolutionError.
// Context cancellation counts as a transport failure; anything else the
// store reported is a rejection carrying its message.
func classifyStoreError(ctx context.Context, err error) *ResolutionError {
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewTransportError(err)
	}
	return &ResolutionError{
		Kind:    StoreRejected,
		Message: ErrMsgStoreRejected,
		Cause:   err,
	}
}
