// Package mocks 提供 media 层接口的测试模拟实现。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/types"
)

// Step is one scripted CheckTaskStatus outcome.
type Step struct {
	Status *media.TaskStatusResponse
	Err    error
}

// Pending returns a PROCESSING step.
func Pending() Step {
	return Step{Status: &media.TaskStatusResponse{Status: media.TaskProcessing}}
}

// Succeeded returns a SUCCESS step with the given outputs.
func Succeeded(outputs ...string) Step {
	return Step{Status: &media.TaskStatusResponse{Status: media.TaskSucceeded, Output: outputs}}
}

// FailedStep returns a FAILED step.
func FailedStep(msg string) Step {
	return Step{Status: &media.TaskStatusResponse{Status: media.TaskFailed, Error: msg}}
}

// ErrStep returns a step whose check fails.
func ErrStep(err error) Step {
	return Step{Err: err}
}

// ScriptedChecker replays steps in order; the last step repeats.
type ScriptedChecker struct {
	mu    sync.Mutex
	steps []Step
	calls []string
}

// NewScriptedChecker creates a checker from steps.
func NewScriptedChecker(steps ...Step) *ScriptedChecker {
	return &ScriptedChecker{steps: steps}
}

// CheckTaskStatus implements media.TaskChecker.
func (c *ScriptedChecker) CheckTaskStatus(ctx context.Context, taskID string) (*media.TaskStatusResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := len(c.calls)
	c.calls = append(c.calls, taskID)
	if len(c.steps) == 0 {
		return &media.TaskStatusResponse{Status: media.TaskProcessing}, nil
	}
	if idx >= len(c.steps) {
		idx = len(c.steps) - 1
	}
	s := c.steps[idx]
	return s.Status, s.Err
}

// Calls returns how many checks ran.
func (c *ScriptedChecker) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// MockAdapter is a media.Adapter returning a fixed response.
type MockAdapter struct {
	mu       sync.Mutex
	name     string
	response *media.AdapterResponse
	resume   *media.AdapterResponse
	requests []*media.UnifiedGenerationRequest
	resumed  []string
}

// NewMockAdapter creates an adapter that answers SUCCESS with no results.
func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{name: name, response: media.Succeeded()}
}

// WithResponse sets the Dispatch response.
func (m *MockAdapter) WithResponse(resp *media.AdapterResponse) *MockAdapter {
	m.response = resp
	return m
}

// WithResumeResponse sets the Resume response.
func (m *MockAdapter) WithResumeResponse(resp *media.AdapterResponse) *MockAdapter {
	m.resume = resp
	return m
}

// Name implements media.Adapter.
func (m *MockAdapter) Name() string { return m.name }

// Dispatch implements media.Adapter.
func (m *MockAdapter) Dispatch(_ context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.response
}

// Resume implements media.TaskResumer.
func (m *MockAdapter) Resume(_ context.Context, taskID string) *media.AdapterResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumed = append(m.resumed, taskID)
	if m.resume != nil {
		return m.resume
	}
	return media.Processing(taskID, nil)
}

// Requests returns the received requests.
func (m *MockAdapter) Requests() []*media.UnifiedGenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*media.UnifiedGenerationRequest(nil), m.requests...)
}

// Resumed returns the task ids passed to Resume.
func (m *MockAdapter) Resumed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.resumed...)
}

// Report is one MockMonitor observation.
type Report struct {
	Adapter string
	Err     *types.Error
}

// MockMonitor records reported errors.
type MockMonitor struct {
	mu      sync.Mutex
	reports []Report
}

// Report implements media.ErrorMonitor.
func (m *MockMonitor) Report(_ context.Context, adapter string, err *types.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, Report{Adapter: adapter, Err: err})
}

// Reports returns everything reported so far.
func (m *MockMonitor) Reports() []Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Report(nil), m.reports...)
}
