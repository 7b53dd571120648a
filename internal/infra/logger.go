package infra

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// logRetention is the number of daily log files kept in the log directory.
const logRetention = 30

// NewLogger constructs a zerolog.Logger for the service. level is a name
// such as "INFO" or "debug"; unknown names fall back to info. When logDir is
// set, records are also appended to <logDir>/YYYY-MM-DD.log, switching files
// when the date changes. The returned closer releases that file.
func NewLogger(appEnv, level, logDir string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if appEnv == "development" && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}

	var console io.Writer = os.Stdout
	if appEnv == "development" {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	out := console
	if logDir != "" {
		w, err := newDailyFileWriter(logDir, logRetention, time.Now)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		closer = w
		out = zerolog.MultiLevelWriter(console, w)
	}

	logger := zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return logger, closer, nil
}

// dailyFileWriter appends to <dir>/YYYY-MM-DD.log for the current local date
// and removes the oldest files beyond keep whenever it opens a new one.
type dailyFileWriter struct {
	dir  string
	keep int
	now  func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func newDailyFileWriter(dir string, keep int, now func() time.Time) (*dailyFileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	w := &dailyFileWriter{dir: dir, keep: keep, now: now}
	if err := w.rotate(now().Format("2006-01-02")); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *dailyFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if day := w.now().Format("2006-01-02"); day != w.day || w.file == nil {
		if err := w.rotate(day); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

func (w *dailyFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotate is called with w.mu held, or before w is shared.
func (w *dailyFileWriter) rotate(day string) error {
	f, err := os.OpenFile(filepath.Join(w.dir, day+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if w.file != nil {
		_ = w.file.Close()
	}
	w.file = f
	w.day = day
	w.prune()
	return nil
}

func (w *dailyFileWriter) prune() {
	if w.keep <= 0 {
		return
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	var days []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".log") {
			continue
		}
		if _, err := time.Parse("2006-01-02", strings.TrimSuffix(name, ".log")); err != nil {
			continue
		}
		days = append(days, name)
	}
	if len(days) <= w.keep {
		return
	}
	sort.Strings(days)
	for _, name := range days[:len(days)-w.keep] {
		_ = os.Remove(filepath.Join(w.dir, name))
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
