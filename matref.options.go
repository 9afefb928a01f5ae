package matref

import (
	"go.uber.org/zap"
)

// Option is a functional option for configuring a Processor.
type Option func(*processorConfig)

// processorConfig holds the internal configuration for a Processor.
type processorConfig struct {
	logger *zap.Logger
}

// defaultProcessorConfig returns the default processor configuration.
func defaultProcessorConfig() *processorConfig {
	return &processorConfig{
		logger: nil,
	}
}

// WithLogger sets the logger for the processor and its resolver.
// Default: nil (no logging)
func WithLogger(logger *zap.Logger) Option {
	return func(c *processorConfig) {
		c.logger = logger
	}
}
