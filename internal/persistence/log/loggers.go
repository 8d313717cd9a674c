package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"agrifood.ai/internal/sim/pipeline"
	"agrifood.ai/internal/sim/report"
	"agrifood.ai/internal/sim/scenario"
)

// JSONLZstdWriter appends one JSON document per line to an hourly rotated,
// zstd compressed file under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// StepTracer records every finished pipeline step.
type StepTracer struct{ w *JSONLZstdWriter }

var _ pipeline.Tracer = (*StepTracer)(nil)

func NewStepTracer(dir string) *StepTracer {
	return &StepTracer{w: NewJSONLZstdWriter(filepath.Join(dir, "steps"), "steps")}
}

func (t *StepTracer) StepDone(rec pipeline.StepRecord) error { return t.w.Write(rec) }
func (t *StepTracer) Close() error                          { return t.w.Close() }

// RunEntry is the audit line kept for each scenario run.
type RunEntry struct {
	RunID    string          `json:"run_id"`
	Source   string          `json:"source,omitempty"`
	Preset   string          `json:"preset,omitempty"`
	Levers   scenario.Levers `json:"levers"`
	Summary  report.Summary  `json:"summary"`
	Warnings int             `json:"warnings"`
	Digest   string          `json:"digest"`
	Steps    []string        `json:"steps"`
	At       int64           `json:"at"`
}

// RunLogger writes one RunEntry per scenario run.
type RunLogger struct{ w *JSONLZstdWriter }

func NewRunLogger(dir string) *RunLogger {
	return &RunLogger{w: NewJSONLZstdWriter(filepath.Join(dir, "runs"), "runs")}
}

func (l *RunLogger) WriteOutcome(source string, out *scenario.Outcome) error {
	return l.w.Write(RunEntry{
		RunID:    out.RunID,
		Source:   source,
		Preset:   out.Preset,
		Levers:   out.Levers,
		Summary:  out.Summary,
		Warnings: len(out.Warnings),
		Digest:   out.Digest,
		Steps:    out.Steps,
		At:       l.w.now().Unix(),
	})
}

func (l *RunLogger) Close() error { return l.w.Close() }
