package spanz

import (
	"fmt"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// DropPolicy selects which span is shed when the processor buffer is full.
type DropPolicy int

const (
	// DropOldest evicts the oldest buffered span to make room for the
	// incoming one. This is the default.
	DropOldest DropPolicy = iota
	// DropNewest discards the incoming span and keeps the buffer as is.
	DropNewest
)

func (p DropPolicy) String() string {
	if p == DropNewest {
		return "drop-newest"
	}
	return "drop-oldest"
}

// ConfigError reports an invalid TracerProvider configuration. It is
// returned from NewTracerProvider and is fatal to startup; nothing else
// in the engine ever returns it.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("spanz: invalid config %s: %s", e.Field, e.Reason)
}

// Config holds everything a TracerProvider needs. Zero values are filled
// with defaults by newConfig; hosts normally use the With* options
// instead of building a Config by hand.
type Config struct {
	// Enabled gates the whole pipeline. When false, spans are created
	// unsampled and nothing reaches the exporter.
	Enabled bool

	// ServiceName is stamped on every batch as the service.name
	// resource attribute.
	ServiceName string

	// Sampler decides, per trace, whether spans are recorded.
	Sampler Sampler

	// BatchSize is the buffered-span count that wakes the export loop.
	BatchSize int

	// MaxDelay bounds how long a buffered span waits before the export
	// loop wakes regardless of batch size.
	MaxDelay time.Duration

	// BufferCapacity bounds the processor buffer; overflow sheds spans
	// per DropPolicy.
	BufferCapacity int

	// ExportTimeout bounds each individual export attempt.
	ExportTimeout time.Duration

	// MaxRetryAttempts bounds how many times a retryable export failure
	// is retried before the batch is dropped.
	MaxRetryAttempts int

	// DropPolicy selects the overflow shedding behavior.
	DropPolicy DropPolicy

	// Resource holds extra resource attributes stamped on every batch
	// alongside service.name.
	Resource []Attribute
}

// Defaults follow common collector batching: 512-span batches flushed
// at least every 5s.
const (
	defaultBatchSize        = 512
	defaultMaxDelay         = 5 * time.Second
	defaultBufferCapacity   = 2048
	defaultExportTimeout    = 30 * time.Second
	defaultMaxRetryAttempts = 3
)

// Option configures a TracerProvider.
type Option func(*providerOptions)

type providerOptions struct {
	cfg    Config
	clock  clockz.Clock
	logger *zap.Logger
}

func newProviderOptions() *providerOptions {
	return &providerOptions{
		cfg: Config{
			Enabled:          true,
			Sampler:          AlwaysOn(),
			BatchSize:        defaultBatchSize,
			MaxDelay:         defaultMaxDelay,
			BufferCapacity:   defaultBufferCapacity,
			ExportTimeout:    defaultExportTimeout,
			MaxRetryAttempts: defaultMaxRetryAttempts,
			DropPolicy:       DropOldest,
		},
		clock:  clockz.RealClock,
		logger: zap.NewNop(),
	}
}

// WithEnabled gates the pipeline. Disabled providers keep the full
// Trace/AddSpan surface usable but record and export nothing.
func WithEnabled(enabled bool) Option {
	return func(o *providerOptions) {
		o.cfg.Enabled = enabled
	}
}

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(o *providerOptions) {
		o.cfg.ServiceName = name
	}
}

// WithSampler sets the root sampling policy. Default AlwaysOn.
func WithSampler(sampler Sampler) Option {
	return func(o *providerOptions) {
		o.cfg.Sampler = sampler
	}
}

// WithBatchSize sets the buffered-span count that triggers an export.
func WithBatchSize(size int) Option {
	return func(o *providerOptions) {
		o.cfg.BatchSize = size
	}
}

// WithMaxDelay sets the longest a buffered span waits for an export.
func WithMaxDelay(delay time.Duration) Option {
	return func(o *providerOptions) {
		o.cfg.MaxDelay = delay
	}
}

// WithBufferCapacity bounds the processor's span buffer.
func WithBufferCapacity(capacity int) Option {
	return func(o *providerOptions) {
		o.cfg.BufferCapacity = capacity
	}
}

// WithExportTimeout bounds each export attempt.
func WithExportTimeout(timeout time.Duration) Option {
	return func(o *providerOptions) {
		o.cfg.ExportTimeout = timeout
	}
}

// WithMaxRetryAttempts bounds retries of retryable export failures.
func WithMaxRetryAttempts(attempts int) Option {
	return func(o *providerOptions) {
		o.cfg.MaxRetryAttempts = attempts
	}
}

// WithDropPolicy selects buffer-overflow shedding behavior.
func WithDropPolicy(policy DropPolicy) Option {
	return func(o *providerOptions) {
		o.cfg.DropPolicy = policy
	}
}

// WithResource appends resource attributes stamped on every batch.
func WithResource(attrs ...Attribute) Option {
	return func(o *providerOptions) {
		o.cfg.Resource = append(o.cfg.Resource, attrs...)
	}
}

// WithLogger sets the logger for internal export-failure and shutdown
// reporting. Default is a nop logger: the engine is silent unless asked.
func WithLogger(logger *zap.Logger) Option {
	return func(o *providerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock injects a clock for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(o *providerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// validator is implemented by samplers that carry user-supplied
// parameters needing a fail-fast check at provider construction.
type validator interface {
	validate() error
}

func (c *Config) validate() error {
	if c.Sampler == nil {
		return &ConfigError{Field: "Sampler", Reason: "must not be nil"}
	}
	if v, ok := c.Sampler.(validator); ok {
		if err := v.validate(); err != nil {
			return err
		}
	}
	if c.BufferCapacity <= 0 {
		return &ConfigError{Field: "BufferCapacity", Reason: fmt.Sprintf("must be > 0, got %d", c.BufferCapacity)}
	}
	if c.BatchSize <= 0 {
		return &ConfigError{Field: "BatchSize", Reason: fmt.Sprintf("must be > 0, got %d", c.BatchSize)}
	}
	if c.BatchSize > c.BufferCapacity {
		return &ConfigError{Field: "BatchSize", Reason: fmt.Sprintf("must not exceed BufferCapacity %d, got %d", c.BufferCapacity, c.BatchSize)}
	}
	if c.MaxDelay <= 0 {
		return &ConfigError{Field: "MaxDelay", Reason: "must be > 0"}
	}
	if c.ExportTimeout <= 0 {
		return &ConfigError{Field: "ExportTimeout", Reason: "must be > 0"}
	}
	if c.MaxRetryAttempts < 0 {
		return &ConfigError{Field: "MaxRetryAttempts", Reason: fmt.Sprintf("must be >= 0, got %d", c.MaxRetryAttempts)}
	}
	return nil
}
