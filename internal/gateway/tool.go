package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
)

// MetadataTool runs an external metadata analyzer against a file
type MetadataTool interface {
	Run(ctx context.Context, path string) Result[string]
}

// ToolOutput is the captured result of one analyzer process
type ToolOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// ExifTool invokes an exiftool-compatible binary as "<binary> <path>"
type ExifTool struct {
	binary  string
	timeout time.Duration
}

// NewExifTool creates a runner for the given binary; a zero timeout means
// the caller's context is the only bound
func NewExifTool(binary string, timeout time.Duration) *ExifTool {
	if binary == "" {
		binary = "exiftool"
	}
	return &ExifTool{binary: binary, timeout: timeout}
}

// Exec runs the tool and captures stdout, stderr and the exit code
func (t *ExifTool) Exec(ctx context.Context, path string) (ToolOutput, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := ToolOutput{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.TimedOut = true
	}
	return out, err
}

// Run executes the tool and returns its stdout, or a failure carrying stderr
// when the process is missing, times out or exits non-zero
func (t *ExifTool) Run(ctx context.Context, path string) Result[string] {
	out, err := t.Exec(ctx, path)
	if err == nil {
		return Success(out.Stdout)
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return Failure[string](apperrors.NewExtractionError(
			fmt.Sprintf("metadata tool %q not found", t.binary), err))
	case out.TimedOut:
		return Failure[string](apperrors.NewTimeoutError(
			fmt.Sprintf("metadata tool %q timed out", t.binary), err))
	case errors.As(err, &exitErr):
		msg := strings.TrimSpace(out.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("metadata tool %q exited with code %d", t.binary, out.ExitCode)
		}
		appErr := apperrors.NewExtractionError(msg, err)
		appErr.Details = fmt.Sprintf("exit code %d", out.ExitCode)
		return Failure[string](appErr)
	default:
		return Failure[string](apperrors.NewExtractionError(
			fmt.Sprintf("failed to run metadata tool %q", t.binary), err))
	}
}
