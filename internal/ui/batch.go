package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"time"
)

// BatchUI shows per-file progress for the batch command.
type BatchUI struct {
	writer    io.Writer
	quiet     bool
	workflow  *Workflow
	startTime time.Time
}

// NewBatchUI creates a batch display.
func NewBatchUI(w io.Writer, quiet bool) *BatchUI {
	return &BatchUI{writer: w, quiet: quiet, startTime: time.Now()}
}

// StartWorkflow adds one task per input and starts the spinner.
func (b *BatchUI) StartWorkflow(test string, inputs []string) {
	if b.quiet {
		return
	}
	b.startTime = time.Now()
	fmt.Fprintln(b.writer, Heading.Render(fmt.Sprintf("Running %s on %d file(s)", test, len(inputs))))
	b.workflow = NewWorkflow(b.writer)
	for _, in := range inputs {
		b.workflow.AddTask(filepath.Base(in))
	}
	b.workflow.Start()
}

// StartInput marks input idx as running.
func (b *BatchUI) StartInput(idx int, stations int) {
	if b.quiet || b.workflow == nil {
		return
	}
	b.workflow.StartTask(idx, fmt.Sprintf("%d station(s)", stations))
}

// CompleteInput marks input idx done with its verdict.
func (b *BatchUI) CompleteInput(idx int, valid bool, output string) {
	if b.quiet || b.workflow == nil {
		return
	}
	details := "pass"
	if !valid {
		details = "fail"
	}
	if output != "" {
		details += ", " + output
	}
	b.workflow.CompleteTask(idx, details)
}

// FailInput marks input idx as errored.
func (b *BatchUI) FailInput(idx int, err error) {
	if b.quiet || b.workflow == nil {
		return
	}
	b.workflow.FailTask(idx, err.Error())
}

// SkipInput marks input idx as skipped.
func (b *BatchUI) SkipInput(idx int, reason string) {
	if b.quiet || b.workflow == nil {
		return
	}
	b.workflow.SkipTask(idx, reason)
}

// FinishWorkflow stops the spinner.
func (b *BatchUI) FinishWorkflow() {
	if b.quiet || b.workflow == nil {
		return
	}
	b.workflow.Stop()
}

// PrintSummary prints the batch totals.
func (b *BatchUI) PrintSummary(passed, failed, errored int) {
	if b.quiet {
		return
	}
	elapsed := time.Since(b.startTime)

	body := Pass.Bold().Render("Batch Complete") + "\n\n" +
		KeyValue("Passed", fmt.Sprintf("%d", passed)) + "\n" +
		KeyValue("Failed", fmt.Sprintf("%d", failed)) + "\n" +
		KeyValue("Errors", fmt.Sprintf("%d", errored)) + "\n" +
		KeyValue("Duration", elapsed.Round(time.Millisecond).String())

	fmt.Fprintln(b.writer)
	fmt.Fprintln(b.writer, Panel(failed == 0 && errored == 0).Render(body))
}

// PrintBanner prints the application banner.
func PrintBanner(w io.Writer) {
	fmt.Fprintln(w, RenderBanner(BannerASCII))
}
