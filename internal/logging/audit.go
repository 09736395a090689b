package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditEventType names an audit record.
type AuditEventType string

const (
	AuditSweepStart AuditEventType = "sweep_start"
	AuditSweepEnd   AuditEventType = "sweep_end"
	AuditRequest    AuditEventType = "api_request"
	AuditInsert     AuditEventType = "store_insert"
	AuditExport     AuditEventType = "export"
)

// AuditLogger appends one JSON object per event to audit.jsonl.
// Only active in debug mode; otherwise every method is a no-op.
type AuditLogger struct {
	logger *zap.Logger
	runID  string
}

var (
	auditLogger *zap.Logger
	auditFile   *os.File
	auditMu     sync.Mutex
)

// InitAudit opens the audit log. Requires Initialize to have run.
func InitAudit() error {
	auditMu.Lock()
	defer auditMu.Unlock()

	if !IsDebugMode() || auditLogger != nil {
		return nil
	}

	optsMu.RLock()
	dir := opts.Dir
	optsMu.RUnlock()

	f, err := os.OpenFile(filepath.Join(dir, "audit.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.EpochMillisTimeEncoder
	encCfg.LevelKey = ""
	encCfg.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.DebugLevel)

	auditFile = f
	auditLogger = zap.New(core)
	return nil
}

// CloseAudit flushes and closes the audit log.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditLogger != nil {
		_ = auditLogger.Sync()
		auditLogger = nil
	}
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns an audit logger tagged with a sweep run ID.
func Audit(runID string) *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	return &AuditLogger{logger: auditLogger, runID: runID}
}

func (a *AuditLogger) log(event AuditEventType, fields ...zap.Field) {
	if a == nil || a.logger == nil {
		return
	}
	fields = append(fields, zap.String("run", a.runID))
	a.logger.Info(string(event), fields...)
}

// SweepStart records the start of a sweep over bbox.
func (a *AuditLogger) SweepStart(bbox, skipTo string) {
	a.log(AuditSweepStart, zap.String("bbox", bbox), zap.String("skip_to", skipTo))
}

// SweepEnd records the end of a sweep.
func (a *AuditLogger) SweepEnd(requests, encountered, inserted int, err error) {
	fields := []zap.Field{
		zap.Int("requests", requests),
		zap.Int("encountered", encountered),
		zap.Int("new", inserted),
	}
	if err != nil {
		fields = append(fields, zap.String("error", err.Error()))
	}
	a.log(AuditSweepEnd, fields...)
}

// Request records a single places API request.
func (a *AuditLogger) Request(path, bbox string, items int, d time.Duration, err error) {
	fields := []zap.Field{
		zap.String("path", path),
		zap.String("bbox", bbox),
		zap.Int("items", items),
		zap.Int64("duration_ms", d.Milliseconds()),
		zap.Bool("success", err == nil),
	}
	if err != nil {
		fields = append(fields, zap.String("error", err.Error()))
	}
	a.log(AuditRequest, fields...)
}

// Insert records a store insert batch.
func (a *AuditLogger) Insert(path string, offered, inserted int) {
	a.log(AuditInsert, zap.String("path", path), zap.Int("offered", offered), zap.Int("new", inserted))
}

// Export records a completed export.
func (a *AuditLogger) Export(format, target string, count int) {
	a.log(AuditExport, zap.String("format", format), zap.String("target", target), zap.Int("count", count))
}
