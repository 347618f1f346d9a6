// Package accesslog records one line per answered page request. The render
// pipeline only knows about the Sink interface; the concrete sinks write the
// monthly combined log under logs/ and feed Prometheus counters.
package accesslog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

// Sink receives the status and the number of body bytes sent for a request.
type Sink interface {
	Record(status, bytes int)
}

// Nop discards every record.
type Nop struct{}

func (Nop) Record(int, int) {}

// Multi forwards a record to every sink in order.
type Multi []Sink

func (m Multi) Record(status, bytes int) {
	for _, s := range m {
		if s != nil {
			s.Record(status, bytes)
		}
	}
}

// Request describes the HTTP request a log line is written for. Empty fields
// are logged as "-".
type Request struct {
	RemoteAddr string
	Method     string
	URI        string
	Proto      string
	Referer    string
	UserAgent  string
	Time       time.Time
}

const unknownAddr = "xxx.xxx.xxx.xxx"

// File appends combined-format lines to logs/YYYY-MM.log.
type File struct {
	mu     sync.Mutex
	fs     afero.Fs
	dir    string
	logger *slog.Logger
}

func NewFile(fs afero.Fs, dir string, logger *slog.Logger) *File {
	if logger == nil {
		logger = slog.Default()
	}
	return &File{fs: fs, dir: dir, logger: logger}
}

// For returns a sink that writes its records for req.
func (f *File) For(req Request) Sink {
	if req.Time.IsZero() {
		req.Time = time.Now()
	}
	return fileSink{file: f, req: req}
}

type fileSink struct {
	file *File
	req  Request
}

func (s fileSink) Record(status, bytes int) {
	if err := s.file.write(s.req, status, bytes); err != nil {
		s.file.logger.Error("could not write access log", "error", err)
	}
}

// Line formats one entry in the combined log format.
func Line(req Request, status, bytes int) string {
	addr := req.RemoteAddr
	if addr == "" {
		addr = unknownAddr
	}
	return fmt.Sprintf(`%s - - [%s] "%s %s %s" %d %d "%s" "%s"`,
		addr,
		req.Time.Format("02/Jan/2006:15:04:05 -0700"),
		orDash(req.Method), orDash(req.URI), orDash(req.Proto),
		status, bytes,
		orDash(req.Referer), orDash(req.UserAgent),
	)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// FileName is the log file the entry at t belongs to.
func FileName(t time.Time) string {
	return t.Format("2006-01") + ".log"
}

func (f *File) write(req Request, status, bytes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fs.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("could not create log directory: %w", err)
	}
	path := filepath.Join(f.dir, FileName(req.Time))
	out, err := f.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := out.WriteString(Line(req, status, bytes) + "\n"); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Metrics counts responses and body bytes per status code.
type Metrics struct {
	responses *prometheus.CounterVec
	bytes     *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "violet_responses_total",
			Help: "Rendered page responses by status code.",
		}, []string{"status"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "violet_response_bytes_total",
			Help: "Body bytes sent by status code.",
		}, []string{"status"}),
	}
	for _, c := range []prometheus.Collector{m.responses, m.bytes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("could not register access metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) Record(status, bytes int) {
	code := strconv.Itoa(status)
	m.responses.WithLabelValues(code).Inc()
	m.bytes.WithLabelValues(code).Add(float64(bytes))
}
