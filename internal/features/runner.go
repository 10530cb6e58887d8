package features

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"time"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// maxOutputSize caps captured stdout/stderr of the generator (10MB).
const maxOutputSize = 10 * 1024 * 1024

// Options are the generator switches. They are fixed for the pipeline;
// only Threads is configurable.
type Options struct {
	DetectAromaticity    bool
	StandardizeNitro     bool
	StandardizeTautomers bool
	RemoveSalt           bool
	Fingerprints         bool // fingerprint mode rather than full descriptors
	Log                  bool // verbose logging
	Threads              int
}

// DefaultOptions returns the switches the pipeline always runs with.
func DefaultOptions(threads int) Options {
	return Options{
		DetectAromaticity:    true,
		StandardizeNitro:     true,
		StandardizeTautomers: true,
		RemoveSalt:           true,
		Fingerprints:         true,
		Log:                  true,
		Threads:              threads,
	}
}

// Args renders the PaDEL-Descriptor command line for the given paths.
func (o Options) Args(moleculeFile, specFile, outputFile string) []string {
	args := []string{
		"-dir", moleculeFile,
		"-file", outputFile,
		"-descriptortypes", specFile,
	}
	if o.DetectAromaticity {
		args = append(args, "-detectaromaticity")
	}
	if o.StandardizeNitro {
		args = append(args, "-standardizenitro")
	}
	if o.StandardizeTautomers {
		args = append(args, "-standardizetautomers")
	}
	if o.RemoveSalt {
		args = append(args, "-removesalt")
	}
	if o.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(o.Threads))
	}
	if o.Fingerprints {
		args = append(args, "-fingerprints")
	}
	if o.Log {
		args = append(args, "-log")
	}
	return args
}

// Invocation describes one blocking run of the generator.
// Paths are absolute host paths.
type Invocation struct {
	WorkDir      string
	MoleculeFile string
	SpecFile     string
	OutputFile   string
	Options      Options
}

// Runner executes the fingerprint generator to completion.
// A non-nil error wraps bioactivity.ErrExternalTool.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExecRunner runs the generator as a local subprocess.
type ExecRunner struct {
	Command []string      // prefix, e.g. ["java", "-jar", "/opt/padel/PaDEL-Descriptor.jar"]
	Timeout time.Duration // zero means no timeout beyond ctx
}

// Run executes Command followed by the rendered options.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	if len(r.Command) == 0 {
		return fmt.Errorf("%w: command array is empty", bioactivity.ErrExternalTool)
	}

	execCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, r.Command[1:]...),
		inv.Options.Args(inv.MoleculeFile, inv.SpecFile, inv.OutputFile)...)
	cmd := exec.CommandContext(execCtx, r.Command[0], args...)
	cmd.Dir = inv.WorkDir

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	cmd.Stdout = &limitedWriter{w: stdoutBuf, limit: maxOutputSize}
	cmd.Stderr = &limitedWriter{w: stderrBuf, limit: maxOutputSize}

	log.Printf("[Features] Executing fingerprint generator: command=%v threads=%d", r.Command, inv.Options.Threads)
	startTime := time.Now()

	err := cmd.Run()
	duration := time.Since(startTime)

	if err != nil {
		// A killed process also reports an ExitError, so check the deadline first.
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: generator timed out after %s", bioactivity.ErrExternalTool, r.Timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Printf("[Features] Generator failed: exit_code=%d duration=%s stderr=%s",
				exitErr.ExitCode(), duration, truncate(stderrBuf.String(), 500))
			return fmt.Errorf("%w: generator exited with code %d: %s",
				bioactivity.ErrExternalTool, exitErr.ExitCode(), truncate(stderrBuf.String(), 500))
		}
		return fmt.Errorf("%w: failed to run generator: %v", bioactivity.ErrExternalTool, err)
	}

	log.Printf("[Features] Generator completed: duration=%s", duration)
	return nil
}

// limitedWriter wraps a writer and enforces a size limit.
// Once the limit is reached, further writes are discarded.
type limitedWriter struct {
	w       io.Writer
	limit   int
	written int
}

func (lw *limitedWriter) Write(p []byte) (n int, err error) {
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return len(p), nil
	}

	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
	}

	n, err = lw.w.Write(toWrite)
	lw.written += n
	return len(p), err
}

// truncate limits a string to maxLen characters, appending "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
