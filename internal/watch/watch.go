// Package watch watches a plan file (or a directory of split plan files)
// for edits while a planning session is running: every change is
// re-parsed, re-validated, and the outcome published on the eventbus so a
// renderer can show the operator their plan is now valid, broken, or
// freshly edited without re-running the command by hand.
//
// Grounded on the teacher's internal/behavioral/filewatcher.go: a
// recursive fsnotify watcher with a debounce timer per path coalescing
// rapid writes, generalized from that file's JSONL-pattern-match/FileEvent
// channel shape into a direct re-validate-and-publish callback, since a
// plan watcher has exactly one thing to do with a change event rather than
// handing it to an arbitrary consumer.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/harrison/conductor/internal/dag"
	"github.com/harrison/conductor/internal/eventbus"
	"github.com/harrison/conductor/internal/planio"
)

// DefaultDebounceDelay coalesces rapid successive writes (editors often
// emit several in quick succession for one logical save) into one
// re-validation.
const DefaultDebounceDelay = 150 * time.Millisecond

// PlanWatcher watches a plan path for changes and re-validates on each one.
type PlanWatcher struct {
	watcher *fsnotify.Watcher
	bus     *eventbus.Bus
	path    string

	mu            sync.Mutex
	debounceDelay time.Duration
	timer         *time.Timer
	closed        bool
	done          chan struct{}
}

// New constructs a PlanWatcher for path (a single plan file or a directory
// of numbered split-plan files) and starts watching immediately. The
// caller must call Close to release the underlying fsnotify watcher.
func New(bus *eventbus.Bus, path string) (*PlanWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve plan path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	pw := &PlanWatcher{
		watcher:       watcher,
		bus:           bus,
		path:          abs,
		debounceDelay: DefaultDebounceDelay,
		done:          make(chan struct{}),
	}

	if err := pw.addWatchTargets(abs); err != nil {
		watcher.Close()
		return nil, err
	}

	go pw.processEvents()

	return pw, nil
}

// addWatchTargets registers path with the underlying watcher: a directory
// is watched directly (fsnotify reports create/write/remove of its
// entries); a single file is watched via its parent directory, since
// fsnotify's Linux/BSD backends don't reliably deliver events for a
// watched-by-path regular file across editor save-by-rename patterns.
func (pw *PlanWatcher) addWatchTargets(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("access plan path: %w", err)
	}

	target := path
	if !info.IsDir() {
		target = filepath.Dir(path)
	}

	if err := pw.watcher.Add(target); err != nil {
		return fmt.Errorf("watch %s: %w", target, err)
	}
	return nil
}

func (pw *PlanWatcher) processEvents() {
	for {
		select {
		case <-pw.done:
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.handleEvent(event)
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.bus.Publish(eventbus.TopicLog, eventbus.LogPayload{
				Level:   "error",
				Message: fmt.Sprintf("plan watcher error: %v", err),
			})
		}
	}
}

// handleEvent decides whether event is relevant to the watched plan and,
// if so, schedules a debounced re-validation.
func (pw *PlanWatcher) handleEvent(event fsnotify.Event) {
	if !pw.relevant(event.Name) {
		return
	}
	if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)) {
		return
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.closed {
		return
	}

	if pw.timer != nil {
		pw.timer.Stop()
	}
	pw.timer = time.AfterFunc(pw.debounceDelay, pw.revalidate)
}

// relevant reports whether changedPath is the watched file itself, or —
// when the watched path is a directory — a plan file inside it.
func (pw *PlanWatcher) relevant(changedPath string) bool {
	info, err := os.Stat(pw.path)
	isDir := err == nil && info.IsDir()

	if !isDir {
		return changedPath == pw.path
	}

	if filepath.Dir(changedPath) != pw.path {
		return false
	}
	if strings.HasPrefix(filepath.Base(changedPath), ".") {
		return false
	}
	return planio.DetectFormat(changedPath) != planio.FormatUnknown
}

// revalidate re-parses and re-validates the watched plan, publishing a log
// event with the outcome. Parse failures and validation failures are both
// reported at "warn" so an operator sees the plan is currently broken
// without the watcher itself exiting.
func (pw *PlanWatcher) revalidate() {
	plan, err := planio.ParseFile(pw.path)
	if err != nil {
		pw.bus.Publish(eventbus.TopicLog, eventbus.LogPayload{
			Level:   "warn",
			Message: fmt.Sprintf("plan changed, but failed to parse: %v", err),
		})
		return
	}

	report := dag.ValidatePlan(plan)
	if !report.Valid {
		pw.bus.Publish(eventbus.TopicLog, eventbus.LogPayload{
			Level:   "warn",
			Message: fmt.Sprintf("plan changed: %s is now invalid (%d error(s))", pw.path, len(report.Errors)),
			Metadata: map[string]interface{}{
				"errors":               report.Errors,
				"circular_dependencies": report.CircularDependencies,
				"conflicts":            report.Conflicts,
				"missing_dependencies": report.MissingDependencies,
			},
		})
		return
	}

	pw.bus.Publish(eventbus.TopicLog, eventbus.LogPayload{
		Level:   "info",
		Message: fmt.Sprintf("plan changed: %s revalidated (%d task(s), valid)", pw.path, len(plan.Tasks)),
	})
}

// SetDebounceDelay overrides the delay used to coalesce rapid successive
// writes into one re-validation. Intended for tests; callers generally
// accept DefaultDebounceDelay.
func (pw *PlanWatcher) SetDebounceDelay(delay time.Duration) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	pw.debounceDelay = delay
}

// Close stops the watcher and releases its resources. Safe to call more
// than once.
func (pw *PlanWatcher) Close() error {
	pw.mu.Lock()
	if pw.closed {
		pw.mu.Unlock()
		return nil
	}
	pw.closed = true
	if pw.timer != nil {
		pw.timer.Stop()
	}
	pw.mu.Unlock()

	close(pw.done)
	return pw.watcher.Close()
}
