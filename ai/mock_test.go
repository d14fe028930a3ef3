package ai

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu      sync.Mutex
	buckets []string
}

func (o *recordingObserver) RecordBucket(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buckets = append(o.buckets, name)
}

func newInstantEngine(seed int64) *MockEngine {
	return NewMockEngine(MockOptions{Rand: rand.New(rand.NewSource(seed))})
}

func TestMockEngine_DeterministicWithSeed(t *testing.T) {
	const seed = 42
	engine := newInstantEngine(seed)
	code, _ := engine.Catalog().Lookup(BucketCode)

	expected := rand.New(rand.NewSource(seed))
	for i := 0; i < 5; i++ {
		reply, err := engine.Generate(context.Background(), "Show me a function", nil)
		require.NoError(t, err)
		assert.Equal(t, code.Responses[expected.Intn(len(code.Responses))], reply)
	}
}

func TestMockEngine_RepliesFromMatchedBucket(t *testing.T) {
	engine := newInstantEngine(7)
	catalog := engine.Catalog()

	tests := []struct {
		prompt string
		bucket string
	}{
		{"define a function for me", BucketCode},
		{"the weather is nice", BucketGeneral},
		{"code and learn together", BucketCode},
		{"explain gravity", BucketLearning},
		{"any ideas?", BucketCreative},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			bucket, ok := catalog.Lookup(tt.bucket)
			require.True(t, ok)
			for i := 0; i < 20; i++ {
				reply, err := engine.Generate(context.Background(), tt.prompt, nil)
				require.NoError(t, err)
				assert.Contains(t, bucket.Responses, reply)
			}
		})
	}
}

func TestMockEngine_HistoryDoesNotChangeReply(t *testing.T) {
	history := []Message{{Role: "user", Content: "tell me a creative idea"}, {Role: "assistant", Content: "sure"}}

	withHistory, err := newInstantEngine(3).Generate(context.Background(), "hello", history)
	require.NoError(t, err)
	without, err := newInstantEngine(3).Generate(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, without, withHistory)
}

func TestMockEngine_Observer(t *testing.T) {
	observer := &recordingObserver{}
	engine := NewMockEngine(MockOptions{Observer: observer})

	_, err := engine.Generate(context.Background(), "write a program", nil)
	require.NoError(t, err)
	_, err = engine.Generate(context.Background(), "hi", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{BucketCode, BucketGeneral}, observer.buckets)
}

func TestMockEngine_Delay(t *testing.T) {
	t.Run("delay stays within window", func(t *testing.T) {
		engine := NewMockEngine(MockOptions{MinDelay: 1000 * time.Millisecond, MaxDelay: 3000 * time.Millisecond})
		for i := 0; i < 200; i++ {
			d := engine.nextDelay()
			assert.GreaterOrEqual(t, d, 1000*time.Millisecond)
			assert.Less(t, d, 3000*time.Millisecond)
		}
	})

	t.Run("zero window returns immediately", func(t *testing.T) {
		engine := NewMockEngine(MockOptions{})
		assert.Equal(t, time.Duration(0), engine.nextDelay())
	})

	t.Run("inverted window collapses to min", func(t *testing.T) {
		engine := NewMockEngine(MockOptions{MinDelay: 20 * time.Millisecond, MaxDelay: 5 * time.Millisecond})
		assert.Equal(t, 20*time.Millisecond, engine.nextDelay())
	})

	t.Run("generate waits at least min delay", func(t *testing.T) {
		engine := NewMockEngine(MockOptions{MinDelay: 20 * time.Millisecond, MaxDelay: 30 * time.Millisecond})
		start := time.Now()
		_, err := engine.Generate(context.Background(), "hi", nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})
}

func TestMockEngine_Cancellation(t *testing.T) {
	engine := NewMockEngine(MockOptions{MinDelay: time.Minute, MaxDelay: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Generate(ctx, "hi", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenerationFailure))
	assert.Equal(t, ReasonCanceled, FailureReason(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMockEngine_SimulatedOutage(t *testing.T) {
	engine := newInstantEngine(1)
	ctx := context.Background()

	require.True(t, engine.HealthCheck(ctx).Healthy())

	engine.SetAvailable(false)
	assert.False(t, engine.Available())

	_, err := engine.Generate(ctx, "hello", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenerationFailure))
	assert.Equal(t, ReasonUnavailable, FailureReason(err))

	status := engine.HealthCheck(ctx)
	assert.Equal(t, HealthError, status.Status)
	assert.NotEmpty(t, status.Detail)

	engine.SetAvailable(true)
	reply, err := engine.Generate(ctx, "hello", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}

func TestMockEngine_EmptyBucket(t *testing.T) {
	engine := NewMockEngine(MockOptions{Catalog: &Catalog{Fallback: Bucket{Name: BucketGeneral}}})

	_, err := engine.Generate(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, ReasonEmptyResponse, FailureReason(err))
}

func TestMockEngine_ModelInfo(t *testing.T) {
	info := newInstantEngine(1).ModelInfo()
	assert.Equal(t, "TinyLlama-1.1B-Chat-v1.0", info.Name)
	assert.Equal(t, "1.1B", info.Parameters)
	assert.Len(t, info.Capabilities, 5)
}

func TestMockEngine_ConcurrentGenerate(t *testing.T) {
	engine := newInstantEngine(11)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := engine.Generate(context.Background(), "brainstorm", nil)
			assert.NoError(t, err)
			assert.NotEmpty(t, reply)
		}()
	}
	wg.Wait()
}

func TestGenerationError(t *testing.T) {
	cause := errors.New("connection refused")
	err := failure("remote", ReasonTransport, cause)

	assert.True(t, errors.Is(err, ErrGenerationFailure))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, ReasonTransport, FailureReason(err))
	assert.Contains(t, err.Error(), "remote engine: transport: connection refused")

	assert.Equal(t, "unknown", FailureReason(errors.New("other")))
}
