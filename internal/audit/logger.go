package audit

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Logger appends one JSON line per event to a log file. A nil logger or an
// empty path discards events.
type Logger struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

type Event struct {
	Timestamp  string            `json:"timestamp"`
	Operation  string            `json:"operation"`
	Repository string            `json:"repository,omitempty"`
	Status     string            `json:"status"`
	Code       string            `json:"code,omitempty"`
	Message    string            `json:"message,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

func New(path string, now func() time.Time) *Logger {
	if now == nil {
		now = time.Now
	}
	return &Logger{path: path, now: now}
}

func (l *Logger) Log(ev Event) error {
	if l == nil || l.path == "" {
		return nil
	}
	ev.Timestamp = l.now().UTC().Format(time.RFC3339Nano)
	blob, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(blob, '\n'))
	return err
}

// Record logs the outcome of an operation on a repository. The code of a
// failed operation is taken from the "CODE: message" prefix of err.
func (l *Logger) Record(op, repo string, err error, fields map[string]string) error {
	ev := Event{Operation: op, Repository: repo, Status: StatusOK, Fields: fields}
	if err != nil {
		ev.Status = StatusError
		ev.Message = err.Error()
		ev.Code = ErrorCode(err)
	}
	return l.Log(ev)
}

// ErrorCode returns the leading upper-case code of an error message, or
// empty when it has none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	head, _, ok := strings.Cut(err.Error(), ":")
	if !ok || head == "" {
		return ""
	}
	for _, r := range head {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return ""
		}
	}
	return head
}

// ReadEvents returns the events in path, oldest first. A missing file has no
// events.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}
