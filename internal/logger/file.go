package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/eventbus"
)

// FileLogger subscribes to a bus's topics and appends one line-delimited
// JSON record per event to a timestamped run log under its log directory,
// plus a latest.log symlink pointing at the current run — matching the
// teacher's FileLogger in file.go (timestamped run file, latest.log
// symlink, mutex-guarded append-and-sync writes), generalized from
// human-readable formatted lines to structured JSON records since a file
// sink exists for later machine consumption (resume, audit), not for
// reading in a terminal.
type FileLogger struct {
	logDir    string
	runLog    *os.File
	runFile   string
	sessionID string
	logLevel  string
	mu        sync.Mutex
}

// record is one line of the log file.
type record struct {
	Time    time.Time   `json:"time"`
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

// NewFileLogger subscribes a FileLogger to bus, creating logDir if it does
// not already exist, opening a timestamped run log namespaced by a fresh
// session id, and updating a latest.log symlink to point at it. The
// session id disambiguates two runs that start within the same
// timestamp second, and doubles as the identifier runExecute records
// alongside the run's history.Store row so the two can always be
// correlated.
func NewFileLogger(bus *eventbus.Bus, logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	sessionID := uuid.New().String()
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s-%s.log", time.Now().Format("20060102-150405"), sessionID))
	f, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			f.Close()
			return nil, fmt.Errorf("remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		f.Close()
		return nil, fmt.Errorf("create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:    logDir,
		runLog:    f,
		runFile:   runFile,
		sessionID: sessionID,
		logLevel:  normalizeLogLevel(logLevel),
	}

	bus.Subscribe(eventbus.TopicTaskStart, fl.onEvent)
	bus.Subscribe(eventbus.TopicTaskProgress, fl.onEvent)
	bus.Subscribe(eventbus.TopicTaskComplete, fl.onEvent)
	bus.Subscribe(eventbus.TopicTaskFailed, fl.onEvent)
	bus.Subscribe(eventbus.TopicLog, fl.onLog)
	bus.Subscribe(eventbus.TopicVcsBranchCreated, fl.onEvent)
	bus.Subscribe(eventbus.TopicVcsCommit, fl.onEvent)

	return fl, nil
}

// SessionID returns the uuid generated for this run's log file, shared
// with the run's recorded history.Run row.
func (fl *FileLogger) SessionID() string {
	return fl.sessionID
}

func (fl *FileLogger) onLog(topic eventbus.Topic, payload interface{}) {
	if p, ok := payload.(eventbus.LogPayload); ok && !shouldLog(fl.logLevel, normalizeLogLevel(p.Level)) {
		return
	}
	fl.onEvent(topic, payload)
}

func (fl *FileLogger) onEvent(topic eventbus.Topic, payload interface{}) {
	fl.writeRecord(record{Time: time.Now(), Topic: string(topic), Payload: payload})
}

// writeRecord marshals rec as one JSON line and appends it to the run log,
// syncing immediately so a crash does not lose buffered lines.
func (fl *FileLogger) writeRecord(rec record) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return
	}
	fl.runLog.Write(append(data, '\n'))
	fl.runLog.Sync()
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog == nil {
		return nil
	}
	if err := fl.runLog.Sync(); err != nil {
		return fmt.Errorf("sync run log: %w", err)
	}
	if err := fl.runLog.Close(); err != nil {
		return fmt.Errorf("close run log: %w", err)
	}
	fl.runLog = nil
	return nil
}
