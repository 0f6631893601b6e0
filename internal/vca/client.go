// Package vca implements the charm-based post-deployment
// configuration collaborator (the N2VC equivalent): deploying a charm
// against a VNF/VDU, removing it, running a day-2 primitive, and
// streaming hook-status pushes back to the caller. The
// interface-plus-mock-plus-real shape follows
// adapters/vnf-operator/pkg/dms and .../pkg/gitops in this codebase.
package vca

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/lcmerrors"
)

// StatusUpdate is one hook-status push for a deployed charm
// application, the event n2vc_callback reacts to in status-push mode.
type StatusUpdate struct {
	ModelName       string
	ApplicationName string
	Status          string // "init", "configuring", "active", "error", "blocked"
	Message         string
}

// Client is the VCA collaborator contract.
type Client interface {
	// Login establishes (or reuses) a session. Called once before a
	// fan-out of DeployCharm calls, matching n2vc.login()'s
	// idempotency.
	Login(ctx context.Context) error
	// FormatApplicationName derives the charm application name for a
	// given NS name, member-vnf-index, and VNFD name.
	FormatApplicationName(nsName, vnfIndex, vnfdName string) string
	// DeployCharm installs charmPath against modelName/applicationName
	// with the given config params, blocking until the charm reaches
	// a terminal install state or ctx is cancelled.
	DeployCharm(ctx context.Context, modelName, applicationName, charmPath string, params map[string]interface{}) error
	// RemoveCharm tears down a previously deployed application.
	RemoveCharm(ctx context.Context, modelName, applicationName string) error
	// ExecutePrimitive runs a day-2 action against a deployed
	// application, returning its result payload.
	ExecutePrimitive(ctx context.Context, modelName, applicationName, primitive string, params map[string]interface{}) (map[string]interface{}, error)
	// Updates returns a channel of asynchronous hook-status pushes.
	Updates() <-chan StatusUpdate
}

// MockClient is an in-memory VCA client for tests: DeployCharm and
// ExecutePrimitive complete immediately (optionally returning a
// canned error), and status pushes can be injected via PushStatus.
type MockClient struct {
	mu            sync.Mutex
	updates       chan StatusUpdate
	DeployErr     error
	ExecuteErr    error
	ExecuteResult map[string]interface{}
	deployed      map[string]bool

	// DeployBlock, when set, is read from before DeployCharm returns,
	// letting a test hold a deploy in-flight to assert on its
	// registered task before releasing it.
	DeployBlock <-chan struct{}
}

// NewMockClient builds a MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		updates:  make(chan StatusUpdate, 64),
		deployed: make(map[string]bool),
	}
}

func (m *MockClient) Login(ctx context.Context) error { return nil }

func (m *MockClient) FormatApplicationName(nsName, vnfIndex, vnfdName string) string {
	return fmt.Sprintf("%s-%s-%s", nsName, vnfIndex, vnfdName)
}

func (m *MockClient) DeployCharm(ctx context.Context, modelName, applicationName, charmPath string, params map[string]interface{}) error {
	if m.DeployBlock != nil {
		select {
		case <-m.DeployBlock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.DeployErr != nil {
		return &lcmerrors.VCAError{Op: "deploy", Message: m.DeployErr.Error()}
	}
	m.mu.Lock()
	m.deployed[applicationName] = true
	m.mu.Unlock()
	return nil
}

func (m *MockClient) RemoveCharm(ctx context.Context, modelName, applicationName string) error {
	m.mu.Lock()
	delete(m.deployed, applicationName)
	m.mu.Unlock()
	return nil
}

func (m *MockClient) ExecutePrimitive(ctx context.Context, modelName, applicationName, primitive string, params map[string]interface{}) (map[string]interface{}, error) {
	if m.ExecuteErr != nil {
		return nil, &lcmerrors.VCAError{Op: "execute-primitive", Message: m.ExecuteErr.Error()}
	}
	if m.ExecuteResult != nil {
		return m.ExecuteResult, nil
	}
	return map[string]interface{}{"result": "ok"}, nil
}

func (m *MockClient) Updates() <-chan StatusUpdate { return m.updates }

// PushStatus injects a status update as if it had arrived over the
// websocket stream, for tests driving the callback aggregator.
func (m *MockClient) PushStatus(u StatusUpdate) {
	m.updates <- u
}

// minVersionOK reports whether the given VCA version string is at
// least the minimum this coordinator requires, the Go equivalent of
// the original's startup gate comparing N2VC_version lexically.
func minVersionOK(version, minimum string) bool {
	return version >= minimum
}

// CheckVersion enforces the minimum VCA version gate at startup.
func CheckVersion(version, minimum string) error {
	if !minVersionOK(version, minimum) {
		return fmt.Errorf("vca: version %q is older than the minimum supported %q", version, minimum)
	}
	return nil
}

// DeployTimeout is the original's asyncio.wait(..., timeout=300) value.
// Nothing applies it: DeployCharm, RemoveCharm and ExecutePrimitive run
// until they return or their ctx is cancelled.
const DeployTimeout = 300 * time.Second
