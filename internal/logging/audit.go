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

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names one step in a submission's life.
type AuditEventType string

const (
	AuditSessionStart  AuditEventType = "session_start"
	AuditRunStart      AuditEventType = "run_start"
	AuditRunComplete   AuditEventType = "run_complete"
	AuditRunSuperseded AuditEventType = "run_superseded"
	AuditRunCancelled  AuditEventType = "run_cancelled"
	AuditFileLoad      AuditEventType = "file_load"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	EventType AuditEventType
	SessionID string
	Seq       uint64
	Bytes     int
	Duration  time.Duration
	Success   bool
	Error     string
	Target    string // endpoint, file path or surface name
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditMu   sync.Mutex
	auditFile *os.File
	auditZap  *zap.Logger
)

// AuditLogger writes audit events for one form session.
type AuditLogger struct {
	sessionID string
}

// InitAudit opens <logs>/YYYY-MM-DD_audit.log as JSON lines. A no-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	cfgMu.RLock()
	dir := logsDir
	cfgMu.RUnlock()

	path := filepath.Join(dir, fmt.Sprintf("%s_audit.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.EpochMillisTimeEncoder
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "event"
	encCfg.LevelKey = ""
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), zapcore.InfoLevel)

	auditFile = file
	auditZap = zap.New(core)
	return nil
}

// CloseAudit flushes and closes the audit log.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditZap != nil {
		_ = auditZap.Sync()
		auditZap = nil
	}
	if auditFile != nil {
		_ = auditFile.Close()
		auditFile = nil
	}
}

// AuditWithSession returns an audit logger stamping events with sessionID.
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// Log writes e if the audit log is open.
func (a *AuditLogger) Log(e AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditZap == nil {
		return
	}
	if e.SessionID == "" {
		e.SessionID = a.sessionID
	}

	fields := []zap.Field{
		zap.String("session", e.SessionID),
		zap.Bool("success", e.Success),
	}
	if e.Seq != 0 {
		fields = append(fields, zap.Uint64("seq", e.Seq))
	}
	if e.Bytes != 0 {
		fields = append(fields, zap.Int("bytes", e.Bytes))
	}
	if e.Duration != 0 {
		fields = append(fields, zap.Int64("dur_ms", e.Duration.Milliseconds()))
	}
	if e.Target != "" {
		fields = append(fields, zap.String("target", e.Target))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	auditZap.Info(string(e.EventType), fields...)
}

// =============================================================================
// EVENT HELPERS
// =============================================================================

func (a *AuditLogger) SessionStart(surface string) {
	a.Log(AuditEvent{EventType: AuditSessionStart, Target: surface, Success: true})
}

func (a *AuditLogger) RunStart(seq uint64, bytes int) {
	a.Log(AuditEvent{EventType: AuditRunStart, Seq: seq, Bytes: bytes, Success: true})
}

// RunComplete records the applied outcome of run seq.
func (a *AuditLogger) RunComplete(seq uint64, d time.Duration, err error) {
	e := AuditEvent{EventType: AuditRunComplete, Seq: seq, Duration: d, Success: err == nil}
	if err != nil {
		e.Error = err.Error()
	}
	a.Log(e)
}

// RunDropped records a run whose response was never applied.
func (a *AuditLogger) RunDropped(seq uint64, reason AuditEventType) {
	a.Log(AuditEvent{EventType: reason, Seq: seq})
}

func (a *AuditLogger) FileLoad(path string, bytes int, err error) {
	e := AuditEvent{EventType: AuditFileLoad, Target: path, Bytes: bytes, Success: err == nil}
	if err != nil {
		e.Error = err.Error()
	}
	a.Log(e)
}
