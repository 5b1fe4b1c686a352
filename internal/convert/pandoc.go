// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pdiddy/vault-sync/internal/container"
	"github.com/pdiddy/vault-sync/pkg/types"
)

const defaultPandocBinary = "pandoc"

// pandocFormatArgs selects the docx reader and the Markdown dialect.
var pandocFormatArgs = []string{
	"-f", "docx",
	"-t", "markdown_strict+pipe_tables+yaml_metadata_block",
	"--wrap=none",
	"--standalone",
}

// commandRunner runs a program and returns its captured stderr.
type commandRunner func(ctx context.Context, name string, args ...string) (stderr []byte, err error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// PandocConverter runs a locally installed pandoc binary.
type PandocConverter struct {
	binary string
	run    commandRunner
}

// NewPandocConverter returns a converter for the pandoc binary at path, or
// the one on PATH when path is empty. It fails if the binary cannot be found.
func NewPandocConverter(path string) (*PandocConverter, error) {
	if path == "" {
		path = defaultPandocBinary
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("pandoc not found: %w", err)
	}
	return &PandocConverter{binary: resolved, run: runCommand}, nil
}

// Convert runs pandoc on inputPath. A non-zero exit returns an error
// carrying pandoc's stderr. There is no retry.
func (p *PandocConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	tmp, err := tempOutput(outputPath)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	args := make([]string, 0, len(pandocFormatArgs)+3)
	args = append(args, inputPath)
	args = append(args, pandocFormatArgs...)
	args = append(args, "-o", tmpPath)

	stderr, err := p.run(ctx, p.binary, args...)
	if err != nil {
		os.Remove(tmpPath)
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			return fmt.Errorf("pandoc %s: %w: %s", inputPath, err, msg)
		}
		return fmt.Errorf("pandoc %s: %w", inputPath, err)
	}
	return commitOutput(tmpPath, outputPath)
}

// ContainerConverter runs pandoc from a container image. The .docx is piped
// on stdin and the Markdown read back from stdout.
type ContainerConverter struct {
	runtime container.Runtime
	image   string
}

// NewContainerConverter creates a converter that uses rt to run image,
// defaulting to the pandoc/core image. The image is pulled if it is not
// present locally.
func NewContainerConverter(ctx context.Context, rt container.Runtime, image string) (*ContainerConverter, error) {
	if image == "" {
		image = types.DefaultPandocImage
	}
	if err := rt.EnsureImage(ctx, image); err != nil {
		return nil, fmt.Errorf("pandoc image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerConverter{runtime: rt, image: image}, nil
}

// Convert pipes inputPath through the pandoc container into outputPath.
func (c *ContainerConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputPath, err)
	}
	defer in.Close()

	tmp, err := tempOutput(outputPath)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	runErr := c.runtime.Run(ctx, container.Spec{
		Image:  c.image,
		Args:   pandocFormatArgs,
		Stdin:  in,
		Stdout: tmp,
	})
	closeErr := tmp.Close()
	if runErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("converting %s with %s: %w", inputPath, c.image, runErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	return commitOutput(tmpPath, outputPath)
}

// New builds the converter selected by cfg. The container backend uses
// cfg.Runtime when set, otherwise docker or podman, whichever works.
func New(ctx context.Context, cfg types.ConversionConfig) (Converter, error) {
	switch cfg.Backend {
	case types.BackendContainer:
		rt, err := container.Detect(ctx, cfg.Runtime)
		if err != nil {
			return nil, err
		}
		return NewContainerConverter(ctx, rt, cfg.Image)
	case types.BackendPandoc, "":
		return NewPandocConverter(cfg.PandocPath)
	default:
		return nil, fmt.Errorf("unknown conversion backend %q", cfg.Backend)
	}
}
