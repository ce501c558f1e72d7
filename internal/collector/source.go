package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Source produces one raw license status dump.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	String() string
}

// CommandSource runs the license status tool.
type CommandSource struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// Read runs the command and returns its standard output. A non-zero exit
// is an error carrying the command's standard error.
func (s CommandSource) Read(ctx context.Context) ([]byte, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit the pipes must not hold Run open past the deadline.
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("command timed out after %s", s.Timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("command failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("command failed: %w", err)
	}
	return stdout.Bytes(), nil
}

func (s CommandSource) String() string {
	return strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
}

// FileSource reads a saved dump instead of running the tool.
type FileSource struct {
	Fs   afero.Fs
	Path string
}

// Read returns the file content.
func (s FileSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.Fs, s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read debug file: %w", err)
	}
	return data, nil
}

func (s FileSource) String() string {
	return "file:" + s.Path
}
