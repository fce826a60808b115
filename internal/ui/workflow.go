package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const frameInterval = 80 * time.Millisecond

// TaskStatus is the state of one workflow task.
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskRunning
	TaskDone
	TaskFailed
	TaskSkipped
)

// Task is one line of a workflow, typically one input file of a batch.
type Task struct {
	Name    string
	Status  TaskStatus
	Message string
	Details string
}

// Workflow draws a list of tasks with a spinner next to the running ones.
// All methods are safe for concurrent use by batch workers.
type Workflow struct {
	writer     io.Writer
	tasks      []*Task
	mu         sync.Mutex
	frame      int
	stop       chan struct{}
	done       chan struct{}
	running    bool
	lastHeight int
}

// NewWorkflow creates a workflow writing to w.
func NewWorkflow(w io.Writer) *Workflow {
	return &Workflow{writer: w}
}

// AddTask appends a pending task and returns its index.
func (wf *Workflow) AddTask(name string) int {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	wf.tasks = append(wf.tasks, &Task{Name: name})
	return len(wf.tasks) - 1
}

func (wf *Workflow) set(idx int, fn func(*Task)) {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	if idx >= 0 && idx < len(wf.tasks) {
		fn(wf.tasks[idx])
	}
}

// StartTask marks a task as running.
func (wf *Workflow) StartTask(idx int, message string) {
	wf.set(idx, func(t *Task) { t.Status, t.Message = TaskRunning, message })
}

// CompleteTask marks a task as done.
func (wf *Workflow) CompleteTask(idx int, details string) {
	wf.set(idx, func(t *Task) { t.Status, t.Details = TaskDone, details })
}

// FailTask marks a task as failed.
func (wf *Workflow) FailTask(idx int, errMsg string) {
	wf.set(idx, func(t *Task) { t.Status, t.Message = TaskFailed, errMsg })
}

// SkipTask marks a task as skipped.
func (wf *Workflow) SkipTask(idx int, reason string) {
	wf.set(idx, func(t *Task) { t.Status, t.Message = TaskSkipped, reason })
}

// Snapshot returns a copy of the tasks.
func (wf *Workflow) Snapshot() []Task {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	out := make([]Task, len(wf.tasks))
	for i, t := range wf.tasks {
		out[i] = *t
	}
	return out
}

// Start begins animating.
func (wf *Workflow) Start() {
	wf.mu.Lock()
	if wf.running {
		wf.mu.Unlock()
		return
	}
	wf.running = true
	wf.stop = make(chan struct{})
	wf.done = make(chan struct{})
	wf.mu.Unlock()

	go func() {
		defer close(wf.done)
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()
		for {
			select {
			case <-wf.stop:
				return
			case <-ticker.C:
				wf.mu.Lock()
				wf.frame = (wf.frame + 1) % len(spinnerFrames)
				wf.draw(false)
				wf.mu.Unlock()
			}
		}
	}()
}

// Stop ends the animation and draws the final state.
func (wf *Workflow) Stop() {
	wf.mu.Lock()
	if !wf.running {
		wf.draw(true)
		wf.mu.Unlock()
		return
	}
	wf.running = false
	wf.mu.Unlock()

	close(wf.stop)
	<-wf.done

	wf.mu.Lock()
	wf.draw(true)
	wf.mu.Unlock()
}

// draw must be called with mu held.
func (wf *Workflow) draw(final bool) {
	var b strings.Builder
	b.WriteString(strings.Repeat("\033[A\033[K", wf.lastHeight))
	for _, t := range wf.tasks {
		b.WriteString(wf.line(t, final))
		b.WriteString("\n")
	}
	wf.lastHeight = len(wf.tasks)
	fmt.Fprint(wf.writer, b.String())
}

func (wf *Workflow) line(t *Task, final bool) string {
	icon, name, msg := Muted.Render("○"), Muted, Dim
	switch t.Status {
	case TaskRunning:
		if !final {
			icon, name, msg = Accent.Render(spinnerFrames[wf.frame]), Accent, Accent
		}
	case TaskDone:
		icon, name, msg = CheckMark, Pass, Dim
	case TaskFailed:
		icon, name, msg = CrossMark, Fail, Fail
	case TaskSkipped:
		icon, name, msg = Warn.Render("⊘"), Warn, Warn
	}

	line := icon + " " + name.Render(t.Name)
	text := t.Message
	if t.Status == TaskDone {
		text = t.Details
	}
	if text == "" {
		return line
	}
	if final {
		return line + " " + msg.Render("→ "+text)
	}
	return line + " " + msg.Render(text)
}

// SimpleSpinner is a one-line spinner for a single long operation.
type SimpleSpinner struct {
	writer  io.Writer
	message string
	stop    chan struct{}
	done    chan struct{}
	running bool
	mu      sync.Mutex
}

// NewSimpleSpinner creates a spinner writing to w.
func NewSimpleSpinner(w io.Writer, message string) *SimpleSpinner {
	return &SimpleSpinner{writer: w, message: message}
}

// Start begins the animation.
func (s *SimpleSpinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.writer, "\r\033[K%s %s", Accent.Render(spinnerFrames[i%len(spinnerFrames)]), s.message)
				s.mu.Unlock()
			}
		}
	}()
}

// Stop clears the spinner line and prints the outcome.
func (s *SimpleSpinner) Stop(success bool, finalMessage string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	<-s.done

	fmt.Fprint(s.writer, "\r\033[K")
	if success {
		fmt.Fprintf(s.writer, "%s %s\n", CheckMark, finalMessage)
	} else {
		fmt.Fprintf(s.writer, "%s %s\n", CrossMark, Fail.Render(finalMessage))
	}
}

// UpdateMessage replaces the spinner text.
func (s *SimpleSpinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}
