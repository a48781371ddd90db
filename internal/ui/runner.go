package ui

import (
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig holds configuration for a CLI command execution
type RunnerConfig struct {
	Title           string   // Command title (e.g., "Echo")
	Command         string   // Full command (e.g., "wsecho-cli send")
	Params          []Param  // Parameters to display in header
	StepNames       []string // Names for each step
	Troubleshooting []string // Tips shown when the operation fails
	Output          io.Writer
}

// Runner orchestrates the header → steps → result flow of a CLI command
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	out      io.Writer
}

// NewRunner creates a new runner for a command
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := GetTerminalWidth()

	return &Runner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params...).SetWidth(width),
		progress: NewProgress(config.StepNames...).SetWidth(width),
		out:      config.Output,
	}
}

// Operation is the work a command performs. It reports progress through
// onStep and returns the details to show in the success box.
type Operation func(onStep StepCallback) ([]Param, error)

// Run prints the header, executes operation and prints the result box
func (r *Runner) Run(successTitle string, operation Operation) error {
	start := time.Now()

	_, _ = fmt.Fprintln(r.out, r.header.Render())
	_, _ = fmt.Fprintln(r.out)

	details, err := operation(r.onStep)
	elapsed := time.Since(start).Round(time.Millisecond)

	_, _ = fmt.Fprintln(r.out)
	var result *Result
	if err != nil {
		result = NewFailureResult(r.config.Title+" failed", err, r.config.Troubleshooting...)
	} else {
		result = NewSuccessResult(successTitle, details...)
	}
	result.AddDetail("Duration", elapsed.String()).SetWidth(r.header.Width)
	_, _ = fmt.Fprintln(r.out, result.Render())

	return err
}

func (r *Runner) onStep(stepNumber int, status StepStatus, message string) {
	r.progress.UpdateStep(stepNumber, status, message)
	if stepNumber < 1 || stepNumber > len(r.progress.Steps) {
		return
	}
	line := r.progress.renderStepLine(r.progress.Steps[stepNumber-1])
	if status == StepRunning {
		// Overwritten when the step finishes
		_, _ = fmt.Fprint(r.out, line+"\r")
		return
	}
	_, _ = fmt.Fprintln(r.out, line)
}
