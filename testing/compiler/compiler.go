// Package compiler builds helper binaries for tests, such as a fake dapr CLI, into a
// temporary directory that is removed on Cleanup.
package compiler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

type Compiler struct {
	dir string
}

func New() *Compiler {
	tempDir, err := os.MkdirTemp("", "daprit-binaries")
	if err != nil {
		panic(err)
	}
	return &Compiler{dir: tempDir}
}

func (c *Compiler) Dir() string {
	return c.dir
}

func (c *Compiler) Cleanup() {
	_ = os.RemoveAll(c.dir)
}

// Work is one binary to build.
type Work struct {
	// Name of the binary.
	Name string
	// Target is the directory of the module the source is in.
	Target string
	// Source is the main package, relative to Target.
	Source      string
	Environment []string

	// Result optionally receives the binary path.
	Result *string
}

// Compile builds the binary described by work and returns its path.
func (c *Compiler) Compile(ctx context.Context, work Work) (string, error) {
	cwd, err := filepath.Abs(work.Target)
	if err != nil {
		return "", err
	}

	path := binaryPath(work.Name, c.dir)
	// #nosec - building test binaries is the point
	cmd := exec.CommandContext(ctx, goPath(), "build",
		"-ldflags=-w -s",
		"-o", path,
		work.Source,
	)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	cmd.Env = append(cmd.Env, work.Environment...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("compiling %s: %w", work.Name, err)
	}
	if work.Result != nil {
		*work.Result = path
	}
	return path, nil
}

// CompileAll builds every work item concurrently, setting each Result.
func (c *Compiler) CompileAll(ctx context.Context, work ...Work) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range work {
		w := w
		g.Go(func() error {
			_, err := c.Compile(ctx, w)
			return err
		})
	}
	return g.Wait()
}

func goPath() string {
	goroot := os.Getenv("GOROOT")
	if goroot == "" {
		return "go"
	}
	return filepath.Join(goroot, "bin", "go")
}

func binaryPath(name, dir string) string {
	path := filepath.Join(dir, name)
	if runtime.GOOS == "windows" {
		return path + ".exe"
	}
	return path
}
