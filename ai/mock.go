package ai

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

const mockEngineName = "mock"

// Default latency window of the mock engine.
const (
	DefaultMinDelay = 1000 * time.Millisecond
	DefaultMaxDelay = 3000 * time.Millisecond
)

// BucketObserver is notified of every bucket the mock engine answers from.
type BucketObserver interface {
	RecordBucket(name string)
}

// MockOptions configures a MockEngine. Zero delays disable waiting entirely.
type MockOptions struct {
	Rand     *rand.Rand
	Catalog  *Catalog
	Observer BucketObserver
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultMockOptions returns the default 1-3 second latency window.
func DefaultMockOptions() MockOptions {
	return MockOptions{
		MinDelay: DefaultMinDelay,
		MaxDelay: DefaultMaxDelay,
	}
}

// MockEngine simulates a model: it waits a random delay, classifies the prompt into a
// bucket and returns one of the bucket's canned responses.
type MockEngine struct {
	catalog  *Catalog
	observer BucketObserver
	rng      *rand.Rand
	minDelay time.Duration
	maxDelay time.Duration

	rngMu       sync.Mutex
	unavailable atomic.Bool
}

// NewMockEngine creates a mock engine. Nil Rand and Catalog fall back to a
// time-seeded source and DefaultCatalog.
func NewMockEngine(opts MockOptions) *MockEngine {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // response variety, not security
	}
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.MinDelay < 0 {
		opts.MinDelay = 0
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	return &MockEngine{
		catalog:  opts.Catalog,
		observer: opts.Observer,
		rng:      opts.Rand,
		minDelay: opts.MinDelay,
		maxDelay: opts.MaxDelay,
	}
}

// SetAvailable toggles simulated backend availability. While unavailable every
// Generate call fails with ErrGenerationFailure and HealthCheck reports an error.
func (e *MockEngine) SetAvailable(available bool) {
	e.unavailable.Store(!available)
}

// Available reports the simulated backend availability.
func (e *MockEngine) Available() bool {
	return !e.unavailable.Load()
}

// Catalog returns the buckets this engine answers from.
func (e *MockEngine) Catalog() *Catalog {
	return e.catalog
}

// Generate implements Engine. history is accepted for interface compatibility but does
// not influence the reply.
func (e *MockEngine) Generate(ctx context.Context, prompt string, _ []Message) (string, error) {
	if delay := e.nextDelay(); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", failure(mockEngineName, ReasonCanceled, ctx.Err())
		case <-timer.C:
		}
	}

	if !e.Available() {
		return "", failure(mockEngineName, ReasonUnavailable, nil)
	}

	bucket := e.catalog.Classify(prompt)
	if len(bucket.Responses) == 0 {
		return "", failure(mockEngineName, ReasonEmptyResponse, nil)
	}
	if e.observer != nil {
		e.observer.RecordBucket(bucket.Name)
	}
	reply := bucket.Responses[e.intn(len(bucket.Responses))]

	slog.Debug("Mock engine replied", "bucket", bucket.Name, "prompt_length", len(prompt))
	return reply, nil
}

// HealthCheck implements Engine.
func (e *MockEngine) HealthCheck(_ context.Context) HealthStatus {
	if !e.Available() {
		return HealthStatus{Status: HealthError, Detail: "simulated backend is unavailable"}
	}
	return HealthStatus{Status: HealthHealthy, Detail: mockModelName}
}

const mockModelName = "TinyLlama-1.1B-Chat-v1.0"

// ModelInfo implements Engine.
func (e *MockEngine) ModelInfo() ModelInfo {
	return ModelInfo{
		Name:        mockModelName,
		Description: "A compact but powerful language model optimized for conversation",
		Parameters:  "1.1B",
		Capabilities: []string{
			"Natural conversation",
			"Code assistance",
			"Creative writing",
			"Question answering",
			"Learning support",
		},
	}
}

// nextDelay draws uniformly from [minDelay, maxDelay).
func (e *MockEngine) nextDelay() time.Duration {
	span := e.maxDelay - e.minDelay
	if span <= 0 {
		return e.minDelay
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.minDelay + time.Duration(e.rng.Int63n(int64(span)))
}

func (e *MockEngine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(n)
}
