package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

func (lv Level) String() string {
	if s, ok := levelNames[lv]; ok {
		return s
	}
	return "INFO"
}

// ParseLevel falls back to INFO for anything it does not recognise.
func ParseLevel(s string) Level {
	for lv, name := range levelNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return lv
		}
	}
	return INFO
}

type Entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Logger writes a colored line to the console and a JSON line to the log file.
type Logger struct {
	mu       sync.Mutex
	console  io.Writer
	jsonOut  io.Writer
	file     *os.File
	minLevel Level
	colored  bool
}

type Options struct {
	Dir     string
	Prefix  string
	Level   Level
	NoColor bool
}

// New opens (or appends to) <Dir>/<Prefix>-<date>.log.
func New(opts Options) (*Logger, error) {
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if opts.Prefix == "" {
		opts.Prefix = "ticket-service"
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	name := filepath.Join(opts.Dir, fmt.Sprintf("%s-%s.log", opts.Prefix, time.Now().Format("2006-01-02")))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &Logger{
		console:  os.Stdout,
		jsonOut:  f,
		file:     f,
		minLevel: opts.Level,
		colored:  !opts.NoColor,
	}
	l.Info("LOGGER", fmt.Sprintf("Log file: %s", name))
	return l, nil
}

// NewWriter builds a logger without a log file. Used by tests and the migrate command.
func NewWriter(console, jsonOut io.Writer, minLevel Level) *Logger {
	return &Logger{
		console:  console,
		jsonOut:  jsonOut,
		minLevel: minLevel,
	}
}

// Discard swallows everything.
func Discard() *Logger {
	return NewWriter(io.Discard, nil, FATAL+1)
}

func (l *Logger) log(level Level, category, message string) {
	if l == nil || level < l.minLevel {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	entry := Entry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     level.String(),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.console != nil {
		fmt.Fprint(l.console, l.terminalLine(level, entry))
	}
	if l.jsonOut != nil {
		b, _ := json.Marshal(entry)
		l.jsonOut.Write(append(b, '\n'))
	}
}

func (l *Logger) terminalLine(level Level, e Entry) string {
	clock := e.Timestamp[11:19]
	if !l.colored {
		return fmt.Sprintf("%s %-5s [%-10s] %s (%s:%d)\n", clock, e.Level, e.Category, e.Message, e.File, e.Line)
	}

	var c *color.Color
	switch level {
	case DEBUG:
		c = color.New(color.FgCyan)
	case INFO:
		c = color.New(color.FgGreen)
	case WARN:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgRed)
	}
	levelStr := c.Sprintf("%-5s", e.Level)
	categoryStr := c.Add(color.Bold).Sprintf("[%-10s]", e.Category)

	out := fmt.Sprintf("%s %s %s %s",
		color.New(color.FgBlue).Sprint(clock),
		levelStr,
		categoryStr,
		e.Message,
	)
	if e.File != "" && e.Line > 0 {
		out += color.New(color.FgMagenta).Sprintf(" (%s:%d)", e.File, e.Line)
	}
	return out + "\n"
}

func (l *Logger) Debug(category, message string) { l.log(DEBUG, category, message) }
func (l *Logger) Info(category, message string)  { l.log(INFO, category, message) }
func (l *Logger) Warn(category, message string)  { l.log(WARN, category, message) }
func (l *Logger) Error(category, message string) { l.log(ERROR, category, message) }

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	os.Exit(1)
}

func (l *Logger) LogTicket(action, ticketID, message string) {
	l.log(INFO, "TICKET", fmt.Sprintf("[%s] %s - %s", action, ticketID, message))
}

func (l *Logger) LogPayment(action, ticketID, message string) {
	l.log(INFO, "PAYMENT", fmt.Sprintf("[%s] %s - %s", action, ticketID, message))
}

func (l *Logger) LogScan(outcome, ticketID, agentID string) {
	l.log(INFO, "ENTRY", fmt.Sprintf("[%s] %s - by %s", outcome, ticketID, agentID))
}

func (l *Logger) LogAPI(method, path string, status int, took time.Duration) {
	l.log(INFO, "API", fmt.Sprintf("%s %s - %d (%s)", method, path, status, took))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.log(INFO, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.log(INFO, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.log(WARN, "SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
