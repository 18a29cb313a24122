package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/conductor/internal/eventbus"
)

// ConsoleLogger subscribes to a bus's topics and renders each event as a
// colorized, TTY-aware status line. Grounded on the teacher's ConsoleLogger
// in console.go (isatty detection, per-level coloring, timestamp/duration
// formatting), generalized from direct wave/QC/Guard method calls to
// eventbus subscription: spec.md §4.2 makes the bus, not the execution
// engine, the thing a renderer depends on.
type ConsoleLogger struct {
	out        io.Writer
	color      bool
	logLevel   string
	showDurs   bool
	scheme     *colorScheme
	mu         sync.Mutex
	startTimes map[string]time.Time
	progress   *ProgressBar
}

// NewConsoleLogger subscribes a ConsoleLogger to bus and returns it. Color
// is enabled only when out is a TTY and enableColor is true, matching the
// teacher's isTerminal gate. When enableProgressBar is set and totalTasks
// is greater than zero, every task completion or failure also renders a
// running progress bar across the plan's task count.
func NewConsoleLogger(bus *eventbus.Bus, out io.Writer, enableColor bool, logLevel string, showDurations bool, enableProgressBar bool, totalTasks int) *ConsoleLogger {
	useColor := enableColor && isTerminal(out)
	color.NoColor = !useColor

	cl := &ConsoleLogger{
		out:        out,
		color:      useColor,
		logLevel:   normalizeLogLevel(logLevel),
		showDurs:   showDurations,
		scheme:     newColorScheme(),
		startTimes: make(map[string]time.Time),
	}
	if enableProgressBar && totalTasks > 0 {
		cl.progress = NewProgressBar(totalTasks, 20, useColor)
	}

	bus.Subscribe(eventbus.TopicTaskStart, cl.onTaskStart)
	bus.Subscribe(eventbus.TopicTaskProgress, cl.onTaskProgress)
	bus.Subscribe(eventbus.TopicTaskComplete, cl.onTaskComplete)
	bus.Subscribe(eventbus.TopicTaskFailed, cl.onTaskFailed)
	bus.Subscribe(eventbus.TopicLog, cl.onLog)
	bus.Subscribe(eventbus.TopicVcsBranchCreated, cl.onVcsBranchCreated)
	bus.Subscribe(eventbus.TopicVcsCommit, cl.onVcsCommit)

	return cl
}

// isTerminal reports whether out is a TTY-backed *os.File, mirroring the
// teacher's isTerminal helper.
func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (cl *ConsoleLogger) timestamp() string {
	return time.Now().Format("15:04:05")
}

func (cl *ConsoleLogger) println(line string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	fmt.Fprintf(cl.out, "[%s] %s\n", cl.timestamp(), line)
}

func (cl *ConsoleLogger) onTaskStart(_ eventbus.Topic, payload interface{}) {
	if !shouldLog(cl.logLevel, "info") {
		return
	}
	p, ok := payload.(eventbus.TaskStartPayload)
	if !ok {
		return
	}

	cl.mu.Lock()
	cl.startTimes[p.Task.ID] = time.Now()
	cl.mu.Unlock()

	cl.println(fmt.Sprintf("%s %s", cl.scheme.label.Sprint("start"), cl.scheme.value.Sprint(p.Task.Name)))
}

func (cl *ConsoleLogger) onTaskProgress(_ eventbus.Topic, payload interface{}) {
	if !shouldLog(cl.logLevel, "debug") {
		return
	}
	p, ok := payload.(eventbus.TaskProgressPayload)
	if !ok {
		return
	}

	line := formatColorizedMetric(string(p.Phase), p.TaskID, cl.scheme)
	if p.Message != "" {
		line += ": " + p.Message
	}
	cl.println(line)
}

func (cl *ConsoleLogger) onTaskComplete(_ eventbus.Topic, payload interface{}) {
	if !shouldLog(cl.logLevel, "info") {
		return
	}
	p, ok := payload.(eventbus.TaskCompletePayload)
	if !ok {
		return
	}

	status := cl.scheme.success.Sprint("done")
	if !p.Success {
		status = cl.scheme.fail.Sprint("failed")
	}

	line := fmt.Sprintf("%s %s, %s", status, p.TaskID, formatFilesChanged(p.FilesChanged, cl.scheme))
	if cl.showDurs {
		if d, ok := cl.takeDuration(p.TaskID); ok {
			line += fmt.Sprintf(" (%s)", formatDuration(d))
		}
	}
	line += cl.advanceProgress()
	cl.println(line)
}

// advanceProgress increments the progress bar, if one is configured, and
// returns its rendering prefixed with a separator, or "" when no bar is
// configured.
func (cl *ConsoleLogger) advanceProgress() string {
	if cl.progress == nil {
		return ""
	}
	cl.progress.Increment()
	return "  " + cl.progress.Render()
}

func (cl *ConsoleLogger) onTaskFailed(_ eventbus.Topic, payload interface{}) {
	if !shouldLog(cl.logLevel, "error") {
		return
	}
	p, ok := payload.(eventbus.TaskFailedPayload)
	if !ok {
		return
	}

	line := fmt.Sprintf("%s %s: %s", cl.scheme.fail.Sprint("error"), p.TaskID, p.Error)
	line += cl.advanceProgress()
	cl.println(line)
}

func (cl *ConsoleLogger) onLog(_ eventbus.Topic, payload interface{}) {
	p, ok := payload.(eventbus.LogPayload)
	if !ok {
		return
	}
	level := normalizeLogLevel(p.Level)
	if !shouldLog(cl.logLevel, level) {
		return
	}

	label := cl.scheme.label.Sprint(level)
	switch level {
	case "warn":
		label = cl.scheme.warn.Sprint("warn")
	case "error":
		label = cl.scheme.fail.Sprint("error")
	}
	cl.println(fmt.Sprintf("%s %s", label, p.Message))
}

func (cl *ConsoleLogger) onVcsBranchCreated(_ eventbus.Topic, payload interface{}) {
	if !shouldLog(cl.logLevel, "debug") {
		return
	}
	p, ok := payload.(eventbus.VcsBranchCreatedPayload)
	if !ok {
		return
	}
	cl.println(formatColorizedMetric("branch", p.BranchName, cl.scheme))
}

func (cl *ConsoleLogger) onVcsCommit(_ eventbus.Topic, payload interface{}) {
	if !shouldLog(cl.logLevel, "info") {
		return
	}
	p, ok := payload.(eventbus.VcsCommitPayload)
	if !ok {
		return
	}
	line := fmt.Sprintf("%s %s: %s (%s)",
		cl.scheme.success.Sprint("commit"), p.BranchName, p.Message, formatFilesChanged(p.FilesChanged, cl.scheme))
	cl.println(line)
}

func (cl *ConsoleLogger) takeDuration(taskID string) (time.Duration, bool) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	start, ok := cl.startTimes[taskID]
	if !ok {
		return 0, false
	}
	delete(cl.startTimes, taskID)
	return time.Since(start), true
}

// formatDuration renders a duration the way the teacher's console does:
// sub-second precision below a second, one decimal of seconds otherwise.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
