// Package ai implements the response engines that produce assistant replies.
package ai

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Message is one turn of conversation history handed to an engine.
type Message struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// HealthState is the coarse liveness of an engine.
type HealthState string

const (
	HealthHealthy HealthState = "healthy"
	HealthError   HealthState = "error"
)

// HealthStatus is returned by Engine.HealthCheck.
type HealthStatus struct {
	Status HealthState `json:"status"`
	Detail string      `json:"detail"`
}

// Healthy reports whether the status is HealthHealthy.
func (s HealthStatus) Healthy() bool {
	return s.Status == HealthHealthy
}

// ModelInfo describes the model behind an engine.
type ModelInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Parameters   string   `json:"parameters"`
	Capabilities []string `json:"capabilities"`
}

// Engine produces assistant replies.
//
// Generate always returns within a bounded time. It returns either a non-empty
// reply or an error for which errors.Is(err, ErrGenerationFailure) holds.
// history holds the messages that preceded prompt, oldest first.
type Engine interface {
	Generate(ctx context.Context, prompt string, history []Message) (string, error)
	// HealthCheck reports liveness quickly and without side effects.
	HealthCheck(ctx context.Context) HealthStatus
	ModelInfo() ModelInfo
}

// ErrGenerationFailure is the only error kind an Engine reports.
var ErrGenerationFailure = errors.New("generation failure")

// Failure reasons attached to GenerationError.
const (
	ReasonUnavailable   = "unavailable"
	ReasonCanceled      = "canceled"
	ReasonTransport     = "transport"
	ReasonBadStatus     = "bad_status"
	ReasonEmptyResponse = "empty_response"
	ReasonDecode        = "decode"
)

// GenerationError describes why an engine could not produce a reply.
// It matches ErrGenerationFailure under errors.Is.
type GenerationError struct {
	Err    error
	Engine string
	Reason string
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s engine: %s: %v", e.Engine, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s engine: %s", e.Engine, e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailure
}

// FailureReason extracts the reason of a GenerationError, or "unknown".
func FailureReason(err error) string {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Reason
	}
	return "unknown"
}

func failure(engine, reason string, cause error) error {
	return errors.WithStack(&GenerationError{Engine: engine, Reason: reason, Err: cause})
}
