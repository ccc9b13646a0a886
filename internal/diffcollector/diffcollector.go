// Package diffcollector runs the host VCS and produces unified diff text for
// a selected collection mode.
package diffcollector

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v5"

	"github.com/wharflab/deltareview/internal/pipelineerrors"
)

// Mode selects which diff a Collector produces.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeWorking Mode = "working"
	ModeStaged  Mode = "staged"
	ModePR      Mode = "pr"
	ModeCommit  Mode = "commit"
)

// Request parameterizes one collection.
type Request struct {
	Mode       Mode
	BaseBranch string
	CommitFrom string
	CommitTo   string
}

// Result is what DiffCollector hands to UnitBuilder.
type Result struct {
	DiffText     string
	ResolvedMode Mode
	BaseRef      string
}

// Collector runs git commands rooted at Dir.
type Collector struct {
	Dir string

	mu       sync.Mutex
	repoRoot string
	checked  bool
}

// New creates a Collector rooted at dir.
func New(dir string) *Collector {
	return &Collector{Dir: dir}
}

// Collect resolves mode and returns the diff text it produces.
func (c *Collector) Collect(ctx context.Context, req Request) (Result, error) {
	if err := c.ensureRepo(ctx); err != nil {
		return Result{}, err
	}

	switch req.Mode {
	case ModeWorking:
		text, err := c.run(ctx, "diff")
		if err != nil {
			return Result{}, err
		}
		return Result{DiffText: text, ResolvedMode: ModeWorking}, nil

	case ModeStaged:
		text, err := c.run(ctx, "diff", "--cached")
		if err != nil {
			return Result{}, err
		}
		return Result{DiffText: text, ResolvedMode: ModeStaged}, nil

	case ModeCommit:
		if req.CommitFrom == "" || req.CommitTo == "" {
			return Result{}, &pipelineerrors.InputError{Reason: "commit mode requires commit_from and commit_to"}
		}
		text, err := c.run(ctx, "diff", req.CommitFrom+".."+req.CommitTo)
		if err != nil {
			return Result{}, err
		}
		return Result{DiffText: text, ResolvedMode: ModeCommit}, nil

	case ModePR:
		return c.collectPR(ctx, req.BaseBranch)

	case ModeAuto, "":
		return c.collectAuto(ctx, req.BaseBranch)

	default:
		return Result{}, &pipelineerrors.InputError{Reason: fmt.Sprintf("unknown diff mode %q", req.Mode)}
	}
}

func (c *Collector) collectAuto(ctx context.Context, base string) (Result, error) {
	if text, err := c.run(ctx, "diff", "--cached"); err == nil && strings.TrimSpace(text) != "" {
		return Result{DiffText: text, ResolvedMode: ModeStaged}, nil
	}
	if text, err := c.run(ctx, "diff"); err == nil && strings.TrimSpace(text) != "" {
		return Result{DiffText: text, ResolvedMode: ModeWorking}, nil
	}
	if res, err := c.collectPR(ctx, base); err == nil && strings.TrimSpace(res.DiffText) != "" {
		return res, nil
	}
	return Result{}, &pipelineerrors.InputError{Reason: "no diff detected in auto mode (staged, working, and pr all empty)"}
}

func (c *Collector) collectPR(ctx context.Context, base string) (Result, error) {
	resolvedBase, err := c.resolveBase(ctx, base)
	if err != nil {
		return Result{}, err
	}

	fetch := func() (struct{}, error) {
		_, err := c.run(ctx, "fetch", "origin", resolvedBase)
		return struct{}{}, err
	}
	if _, err := backoff.Retry(ctx, fetch, backoff.WithMaxTries(3)); err != nil {
		return Result{}, &pipelineerrors.VCSError{Command: "git fetch origin " + resolvedBase, Stderr: err.Error()}
	}

	text, err := c.run(ctx, "diff", "origin/"+resolvedBase+"...HEAD")
	if err != nil {
		return Result{}, err
	}
	return Result{DiffText: text, ResolvedMode: ModePR, BaseRef: resolvedBase}, nil
}

func (c *Collector) resolveBase(ctx context.Context, base string) (string, error) {
	if base != "" {
		return base, nil
	}
	if _, err := c.run(ctx, "show-ref", "--verify", "refs/remotes/origin/main"); err == nil {
		return "main", nil
	}
	if _, err := c.run(ctx, "show-ref", "--verify", "refs/remotes/origin/master"); err == nil {
		return "master", nil
	}
	return "", &pipelineerrors.InputError{Reason: "could not determine base branch: no explicit base, and neither main nor master exists on origin"}
}

// ensureRepo verifies the directory is inside a git repository exactly once
// per Collector instance.
func (c *Collector) ensureRepo(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checked {
		if c.repoRoot == "" {
			return &pipelineerrors.InputError{Reason: fmt.Sprintf("%s is not inside a git repository", c.Dir)}
		}
		return nil
	}
	c.checked = true

	out, err := c.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return &pipelineerrors.InputError{Reason: fmt.Sprintf("%s is not inside a git repository", c.Dir)}
	}
	c.repoRoot = strings.TrimSpace(out)
	return nil
}

func (c *Collector) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &pipelineerrors.VCSError{
			Command: "git " + strings.Join(args, " "),
			Stderr:  strings.TrimSpace(stderr.String()),
			Cause:   err,
		}
	}
	return stdout.String(), nil
}
