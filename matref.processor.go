package matref

import (
	"context"

	"go.uber.org/zap"
)

// BatchResult is the outcome of processing one batch of prompts.
type BatchResult struct {
	// EnhancedPrompts has one entry per input prompt, in input order.
	EnhancedPrompts []string `json:"enhanced_prompts"`

	// ReferenceImages are the image URLs the store derived for the batch.
	ReferenceImages []string `json:"reference_images"`

	// StyleParams are the style parameters the store derived for the batch.
	StyleParams map[string]any `json:"style_params"`

	// Degraded is true when resolution failed and the prompts were
	// returned unchanged. Only EnhancePrompts sets it.
	Degraded bool `json:"degraded,omitempty"`

	// Err holds the resolution failure behind a degraded result.
	Err error `json:"-"`
}

// Processor resolves and renders batches of prompts.
// It is safe for concurrent use; concurrent batches do not share state
// and each performs its own store call.
type Processor struct {
	resolver *Resolver
	logger   *zap.Logger
}

// NewProcessor creates a processor that resolves materials through store.
func NewProcessor(store ReferenceStore, opts ...Option) (*Processor, error) {
	config := defaultProcessorConfig()
	for _, opt := range opts {
		opt(config)
	}

	logger := config.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver, err := NewResolver(store, logger)
	if err != nil {
		return nil, err
	}

	return &Processor{
		resolver: resolver,
		logger:   logger,
	}, nil
}

// MustNewProcessor creates a Processor and panics if there's an error.
func MustNewProcessor(store ReferenceStore, opts ...Option) *Processor {
	p, err := NewProcessor(store, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Resolver returns the processor's resolver.
func (p *Processor) Resolver() *Resolver {
	return p.resolver
}

// ProcessBatchPrompts resolves the materials referenced across all prompts
// once and renders every prompt against that single mapping, so the same
// material ID renders identically everywhere in the batch.
func (p *Processor) ProcessBatchPrompts(ctx context.Context, prompts []string) (*BatchResult, error) {
	resolution, err := p.resolver.ResolveBatch(ctx, prompts)
	if err != nil {
		return nil, err
	}

	enhanced, stats := renderPrompts(prompts, resolution.Materials)

	p.logger.Debug(LogMsgRenderComplete,
		zap.Int(LogFieldPrompts, len(prompts)),
		zap.Int(LogFieldResolved, stats.resolved),
		zap.Int(LogFieldUnresolved, stats.unresolved))

	return &BatchResult{
		EnhancedPrompts: enhanced,
		ReferenceImages: resolution.ReferenceImages,
		StyleParams:     resolution.StyleParams,
	}, nil
}

// EnhancePrompts is ProcessBatchPrompts with the fallback policy applied:
// when resolution fails the prompts come back unchanged, the result is
// marked Degraded and carries the error. It never returns nil.
func (p *Processor) EnhancePrompts(ctx context.Context, prompts []string) *BatchResult {
	result, err := p.ProcessBatchPrompts(ctx, prompts)
	if err == nil {
		return result
	}

	p.logger.Warn(LogMsgFallback,
		zap.Int(LogFieldPrompts, len(prompts)),
		zap.Error(err))

	unchanged := make([]string, len(prompts))
	copy(unchanged, prompts)

	return &BatchResult{
		EnhancedPrompts: unchanged,
		ReferenceImages: []string{},
		StyleParams:     map[string]any{},
		Degraded:        true,
		Err:             err,
	}
}
