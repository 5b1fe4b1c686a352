// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs one-shot tool containers through docker or podman.
// The converter uses it to run pandoc from an image on machines without a
// local pandoc install: input is streamed on stdin, output read from stdout,
// and the container gets no network and no mounts.
package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/pdiddy/vault-sync/internal/logger"
)

// Supported runtime binaries, in detection order.
const (
	Docker = "docker"
	Podman = "podman"
)

// Spec describes a single container run.
type Spec struct {
	Image  string
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
}

// Runtime is a container engine able to run a Spec.
type Runtime interface {
	// Name returns the runtime binary name.
	Name() string

	// EnsureImage makes image available locally, pulling it when missing.
	EnsureImage(ctx context.Context, image string) error

	// Run executes spec in a throwaway container. A failed run returns an
	// error that includes the container's stderr.
	Run(ctx context.Context, spec Spec) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	Stream(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (osExecutor) Stream(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// engine implements Runtime for docker and podman, which share the CLI
// surface used here.
type engine struct {
	bin  string
	exec executor
}

func (e *engine) Name() string { return e.bin }

// usable reports whether the binary is installed and its daemon or
// service answers.
func (e *engine) usable(ctx context.Context) bool {
	if _, err := e.exec.LookPath(e.bin); err != nil {
		return false
	}
	_, err := e.exec.Output(ctx, e.bin, "info")
	return err == nil
}

func (e *engine) EnsureImage(ctx context.Context, image string) error {
	if _, err := e.exec.Output(ctx, e.bin, "image", "inspect", image); err == nil {
		return nil
	}
	logger.Debug("%s: pulling %s", e.bin, image)
	if out, err := e.exec.Output(ctx, e.bin, "pull", image); err != nil {
		return fmt.Errorf("pulling %s with %s: %w: %s", image, e.bin, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// runArgs builds the argument list for spec.
func runArgs(spec Spec) []string {
	args := []string{"run", "--rm", "-i", "--network", "none", spec.Image}
	return append(args, spec.Args...)
}

func (e *engine) Run(ctx context.Context, spec Spec) error {
	var stderr bytes.Buffer
	err := e.exec.Stream(ctx, e.bin, runArgs(spec), spec.Stdin, spec.Stdout, &stderr)
	if err == nil {
		return nil
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return fmt.Errorf("%s run %s: %w: %s", e.bin, spec.Image, err, msg)
	}
	return fmt.Errorf("%s run %s: %w", e.bin, spec.Image, err)
}

// Detect returns the preferred runtime when it is usable, otherwise the
// first usable of docker and podman. An empty preferred means no preference.
func Detect(ctx context.Context, preferred string) (Runtime, error) {
	return detect(ctx, osExecutor{}, preferred)
}

func detect(ctx context.Context, exec executor, preferred string) (Runtime, error) {
	switch preferred {
	case "", Docker, Podman:
	default:
		return nil, fmt.Errorf("unknown container runtime %q", preferred)
	}

	order := []string{Docker, Podman}
	if preferred != "" {
		order = []string{preferred}
	}
	for _, bin := range order {
		e := &engine{bin: bin, exec: exec}
		if e.usable(ctx) {
			logger.Debug("container runtime: %s", bin)
			return e, nil
		}
	}
	return nil, fmt.Errorf("no usable container runtime (tried %s)", strings.Join(order, ", "))
}
