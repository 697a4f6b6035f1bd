// Package repoops implements a minimal gateway.Service reference stub for
// the "repo_ops" tool. Git plumbing internals are explicitly out of scope
// (spec.md's Non-goals); this stub shells out to the git binary for a
// narrow, read-only command set, following the same exec.CommandContext
// pattern as services/sandbox since no git library appears anywhere in
// this project's dependency surface.
package repoops

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/opencode-ai/orchestrator/orcherrors"
)

// Supported repo_ops sub-commands.
const (
	CapabilityLog    = "repo_log"
	CapabilityDiff   = "repo_diff"
	CapabilityStatus = "repo_status"
)

var gitArgsByCapability = map[string][]string{
	CapabilityLog:    {"log", "--oneline", "-n", "20"},
	CapabilityDiff:   {"diff"},
	CapabilityStatus: {"status", "--short"},
}

// Service runs a narrow, read-only git command set against a configured
// repository directory.
type Service struct {
	repoDir string
	timeout time.Duration
}

// New constructs a repoops Service scoped to repoDir.
func New(repoDir string) *Service {
	return &Service{repoDir: repoDir, timeout: 10 * time.Second}
}

// ServiceID identifies this service to the Gateway.
func (s *Service) ServiceID() string { return "repoops" }

// Capabilities lists the methods this service exposes.
func (s *Service) Capabilities() []string {
	return []string{CapabilityLog, CapabilityDiff, CapabilityStatus}
}

// Execute runs the git sub-command matching method.
func (s *Service) Execute(ctx context.Context, method string, _ map[string]any) (map[string]any, error) {
	args, ok := gitArgsByCapability[method]
	if !ok {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("repoops: unsupported method %q", method))
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, "git", args...)
	cmd.Dir = s.repoDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return map[string]any{"stderr": stderr.String()}, orcherrors.Wrap(orcherrors.KindTransientTransport, fmt.Errorf("repoops: git %s: %w", method, err))
	}
	return map[string]any{"output": stdout.String()}, nil
}

// HealthCheck reports healthy whenever repoDir is configured; a missing
// or non-repository directory surfaces as an Execute error instead, since
// `git status` against it would be the same probe.
func (s *Service) HealthCheck(context.Context) (bool, error) {
	return s.repoDir != "", nil
}

// Shutdown releases no resources.
func (s *Service) Shutdown(context.Context) error { return nil }
