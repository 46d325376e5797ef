package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/models"
)

// FailedNotification is one journal line for a push that could not be sent.
// Notifications are never retried; the journal lets an operator see what
// was dropped.
type FailedNotification struct {
	Timestamp      time.Time         `json:"timestamp"`
	Key            string            `json:"key"`
	ConversationID string            `json:"conversation_id"`
	MessageID      string            `json:"message_id"`
	SenderID       string            `json:"sender_id"`
	Error          string            `json:"error"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// FailedOpWriter appends failed notifications to one JSONL file per day.
type FailedOpWriter struct {
	mu          sync.Mutex
	basePath    string
	current     *os.File
	currentDate string
	now         func() time.Time
}

func NewFailedOpWriter(basePath string) *FailedOpWriter {
	return &FailedOpWriter{
		basePath: basePath,
		now:      time.Now,
	}
}

// Record implements the notifier journal.
func (fw *FailedOpWriter) Record(convID string, m models.Message, err error) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if err := os.MkdirAll(fw.basePath, 0o700); err != nil {
		return fmt.Errorf("failed to create failed_ops directory: %w", err)
	}

	now := fw.now()
	date := now.Format("2006-01-02")
	if fw.currentDate != date || fw.current == nil {
		if fw.current != nil {
			fw.current.Close()
		}

		name := filepath.Join(fw.basePath, fmt.Sprintf("failed_notify_%s.jsonl", date))
		file, openErr := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if openErr != nil {
			return fmt.Errorf("failed to open failed_ops file: %w", openErr)
		}

		fw.current = file
		fw.currentDate = date
	}

	entry := FailedNotification{
		Timestamp:      now,
		Key:            fmt.Sprintf("%s_%d", m.ID, now.UnixNano()),
		ConversationID: convID,
		MessageID:      m.ID,
		SenderID:       m.SenderID,
		Error:          err.Error(),
	}

	data, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal failed op: %w", marshalErr)
	}

	if _, writeErr := fw.current.Write(append(data, '\n')); writeErr != nil {
		return fmt.Errorf("failed to write failed op: %w", writeErr)
	}

	logger.Warn("failed_notification_written", "id", entry.Key, "conversation", convID, "error", err)
	return nil
}

func (fw *FailedOpWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.current != nil {
		err := fw.current.Close()
		fw.current = nil
		return err
	}
	return nil
}

type exitRequest struct {
	Time      string            `json:"time"`
	Reason    string            `json:"reason"`
	Cmd       string            `json:"cmd"`
	CrashPath string            `json:"crash_path,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// WriteCrashDump writes a crash dump with diagnostics and an exit request
// that references it. Both land under the database's state folder, or the
// working directory when dbPath is empty.
func WriteCrashDump(dbPath, reason string, err error) (string, string, error) {
	crashDir := "./crash"
	abortDir := "./abort"
	if dbPath != "" {
		p := PathsFor(dbPath)
		crashDir = p.Crash
		abortDir = p.Abort
	}
	if e := os.MkdirAll(crashDir, 0o700); e != nil {
		return "", "", fmt.Errorf("failed to create crash dir: %w", e)
	}
	if e := os.MkdirAll(abortDir, 0o700); e != nil {
		return "", "", fmt.Errorf("failed to create abort dir: %w", e)
	}

	ts := time.Now().UnixNano()
	dumpPath := filepath.Join(crashDir, fmt.Sprintf("crash-%d.log", ts))

	f, ferr := os.CreateTemp(crashDir, ".crash-*.tmp")
	if ferr != nil {
		return "", "", fmt.Errorf("failed to create temp crash file: %w", ferr)
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	fmt.Fprintf(f, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "reason: %s\n", reason)
	fmt.Fprintf(f, "error: %v\n", err)
	fmt.Fprintf(f, "\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	f.Write(buf[:n])
	f.Sync()
	f.Close()

	if err := os.Rename(tmpName, dumpPath); err != nil {
		return "", "", fmt.Errorf("failed to move crash dump into place: %w", err)
	}
	_ = os.Chmod(dumpPath, 0o600)

	req := exitRequest{
		Time:      time.Now().UTC().Format(time.RFC3339),
		Reason:    reason,
		Cmd:       "crash",
		CrashPath: dumpPath,
		Meta:      map[string]string{"pid": fmt.Sprintf("%d", os.Getpid())},
	}
	data, merr := json.MarshalIndent(req, "", "  ")
	if merr != nil {
		return dumpPath, "", fmt.Errorf("failed to encode req: %w", merr)
	}
	reqPath := filepath.Join(abortDir, fmt.Sprintf("req-%d.json", ts))
	if err := os.WriteFile(reqPath, data, 0o600); err != nil {
		return dumpPath, "", fmt.Errorf("failed to write req: %w", err)
	}
	return dumpPath, reqPath, nil
}
