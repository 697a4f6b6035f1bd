// Package sandbox implements a minimal gateway.Service reference stub for
// code-execution tasks. Sandbox container construction is explicitly out
// of scope (spec.md's Non-goals); this stub runs a small, deliberately
// restricted shell command set in-process so end-to-end scenarios have a
// real collaborator to exercise without building an actual container
// runtime. Grounded in the Gateway's MCPService contract, same as
// services/knowledge.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/opencode-ai/orchestrator/orcherrors"
)

// CapabilityRunCommand is the method name this service exposes.
const CapabilityRunCommand = "run_command"

// allowedCommands bounds what this reference stub will actually exec,
// since it has no container isolation.
var allowedCommands = map[string]struct{}{
	"echo": {}, "ls": {}, "pwd": {}, "cat": {},
}

// Service executes a narrow, allow-listed command set without any
// container isolation. Production deployments are expected to replace
// this with a real sandboxed implementation of gateway.Service.
type Service struct {
	timeout time.Duration
}

// New constructs a sandbox Service with a 10s command timeout.
func New() *Service { return &Service{timeout: 10 * time.Second} }

// ServiceID identifies this service to the Gateway.
func (s *Service) ServiceID() string { return "sandbox" }

// Capabilities lists the methods this service exposes.
func (s *Service) Capabilities() []string { return []string{CapabilityRunCommand} }

// Execute runs the command named in params["command"] with params["args"]
// ([]string), allow-listed against allowedCommands.
func (s *Service) Execute(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	if method != CapabilityRunCommand {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("sandbox: unsupported method %q", method))
	}
	command, _ := params["command"].(string)
	if _, ok := allowedCommands[command]; !ok {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("sandbox: command %q is not allow-listed", command))
	}
	var args []string
	if raw, ok := params["args"].([]string); ok {
		args = raw
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	result := map[string]any{"stdout": stdout.String(), "stderr": stderr.String()}
	if err != nil {
		return result, orcherrors.Wrap(orcherrors.KindTransientTransport, fmt.Errorf("sandbox: %s: %w", command, err))
	}
	return result, nil
}

// HealthCheck always reports healthy: this stub has no external
// dependency to probe.
func (s *Service) HealthCheck(context.Context) (bool, error) { return true, nil }

// Shutdown releases no resources.
func (s *Service) Shutdown(context.Context) error { return nil }
