package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event
type EventType string

const (
	// Security events
	EventAuth         EventType = "AUTH"
	EventAuthFailed   EventType = "AUTH_FAILED"
	EventAccess       EventType = "ACCESS"
	EventAccessDenied EventType = "ACCESS_DENIED"

	// Profile events
	EventProfileCreate EventType = "PROFILE_CREATE"
	EventProfileDelete EventType = "PROFILE_DELETE"

	// Content events
	EventRecordRead      EventType = "RECORD_READ"
	EventRecordCreate    EventType = "RECORD_CREATE"
	EventRecordUpdate    EventType = "RECORD_UPDATE"
	EventRecordDelete    EventType = "RECORD_DELETE"
	EventRecordPublish   EventType = "RECORD_PUBLISH"
	EventRecordUnpublish EventType = "RECORD_UNPUBLISH"
	EventUploadRead      EventType = "UPLOAD_READ"
	EventUploadCreate    EventType = "UPLOAD_CREATE"
	EventUploadDelete    EventType = "UPLOAD_DELETE"
	EventSchemaRead      EventType = "SCHEMA_READ"

	// System events
	EventStartup  EventType = "STARTUP"
	EventShutdown EventType = "SHUTDOWN"
	EventError    EventType = "ERROR"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Type          EventType      `json:"type"`
	Severity      Severity       `json:"severity"`
	Source        string         `json:"source"`
	Profile       string         `json:"profile,omitempty"`
	Environment   string         `json:"environment,omitempty"`
	Resource      string         `json:"resource,omitempty"`
	Action        string         `json:"action"`
	Result        string         `json:"result"`
	Details       map[string]any `json:"details,omitempty"`
	Error         string         `json:"error,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// Logger writes audit events as JSON lines. A nil *Logger discards everything.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	filepath  string
	maxSize   int64
	maxAge    time.Duration
	encoder   *json.Encoder
	eventChan chan *AuditEvent
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// Config represents logger configuration
type Config struct {
	FilePath string
	MaxSize  int64         // Maximum file size in bytes
	MaxAge   time.Duration // Maximum age of rotated files
}

// NewLogger creates a new audit logger
func NewLogger(config Config) (*Logger, error) {
	dir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	logger := &Logger{
		file:      file,
		filepath:  config.FilePath,
		maxSize:   config.MaxSize,
		maxAge:    config.MaxAge,
		encoder:   json.NewEncoder(file),
		eventChan: make(chan *AuditEvent, 100),
		stopChan:  make(chan struct{}),
	}

	logger.wg.Add(1)
	go logger.worker()

	logger.LogSystem(EventStartup, "Audit logger started", nil)

	return logger, nil
}

// Log queues an audit event for writing
func (l *Logger) Log(event *AuditEvent) {
	if l == nil || event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Details = sanitize(event.Details)

	select {
	case l.eventChan <- event:
	case <-time.After(time.Second):
		fmt.Fprintf(os.Stderr, "Failed to log audit event: timeout\n")
	}
}

// LogAuth logs a credential check against the API
func (l *Logger) LogAuth(success bool, profile string, details map[string]any) {
	eventType := EventAuth
	result := "SUCCESS"
	severity := SeverityInfo

	if !success {
		eventType = EventAuthFailed
		result = "FAILED"
		severity = SeverityWarning
	}

	l.Log(&AuditEvent{
		Type:     eventType,
		Severity: severity,
		Source:   "auth",
		Profile:  profile,
		Action:   "authenticate",
		Result:   result,
		Details:  details,
	})
}

// LogAccess logs whether an operation was allowed to run
func (l *Logger) LogAccess(resource, action, profile string, allowed bool, details map[string]any) {
	l.Log(AccessEvent(resource, action, profile, allowed, details))
}

// AccessEvent builds the event LogAccess writes
func AccessEvent(resource, action, profile string, allowed bool, details map[string]any) *AuditEvent {
	eventType := EventAccess
	result := "ALLOWED"
	severity := SeverityInfo

	if !allowed {
		eventType = EventAccessDenied
		result = "DENIED"
		severity = SeverityWarning
	}

	return &AuditEvent{
		Type:     eventType,
		Severity: severity,
		Source:   "access",
		Profile:  profile,
		Resource: resource,
		Action:   action,
		Result:   result,
		Details:  details,
	}
}

// LogOperation logs the outcome of a content operation
func (l *Logger) LogOperation(operation EventType, target, profile string, err error, details map[string]any) {
	event := &AuditEvent{
		Type:     operation,
		Severity: SeverityInfo,
		Source:   "cma",
		Profile:  profile,
		Resource: target,
		Action:   string(operation),
		Result:   "SUCCESS",
		Details:  details,
	}
	if err != nil {
		event.Severity = SeverityError
		event.Result = "FAILED"
		event.Error = err.Error()
	}
	l.Log(event)
}

// LogError logs an error event
func (l *Logger) LogError(source string, err error, details map[string]any) {
	l.Log(ErrorEvent(source, err, details))
}

// ErrorEvent builds the event LogError writes; nil for a nil error
func ErrorEvent(source string, err error, details map[string]any) *AuditEvent {
	if err == nil {
		return nil
	}
	return &AuditEvent{
		Type:     EventError,
		Severity: SeverityError,
		Source:   source,
		Action:   "error",
		Result:   "ERROR",
		Error:    err.Error(),
		Details:  details,
	}
}

// LogSystem logs a system event
func (l *Logger) LogSystem(eventType EventType, message string, details map[string]any) {
	l.Log(&AuditEvent{
		Type:     eventType,
		Severity: SeverityInfo,
		Source:   "system",
		Action:   string(eventType),
		Result:   message,
		Details:  details,
	})
}

// LogWithCorrelation logs an event with a correlation ID
func (l *Logger) LogWithCorrelation(event *AuditEvent, correlationID string) {
	if event == nil {
		return
	}
	event.CorrelationID = correlationID
	l.Log(event)
}

func (l *Logger) worker() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case event := <-l.eventChan:
			l.writeEvent(event)

		case <-ticker.C:
			l.performMaintenance()

		case <-l.stopChan:
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) writeEvent(event *AuditEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.encoder.Encode(event); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit event: %v\n", err)
	}

	if l.maxSize > 0 {
		if info, err := l.file.Stat(); err == nil && info.Size() > l.maxSize {
			l.rotate()
		}
	}
}

// rotate moves the current file aside with a timestamp suffix. Caller holds mu.
func (l *Logger) rotate() {
	_ = l.file.Close()

	rotatedPath := fmt.Sprintf("%s.%s", l.filepath, time.Now().Format("20060102-150405.000"))
	_ = os.Rename(l.filepath, rotatedPath)

	file, err := os.OpenFile(l.filepath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open new audit log file: %v\n", err)
		return
	}

	l.file = file
	l.encoder = json.NewEncoder(file)
}

// performMaintenance removes rotated files older than maxAge
func (l *Logger) performMaintenance() {
	if l.maxAge <= 0 {
		return
	}

	dir := filepath.Dir(l.filepath)
	base := filepath.Base(l.filepath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-l.maxAge)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == base || !strings.HasPrefix(name, base+".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

// Close flushes pending events and closes the file
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.LogSystem(EventShutdown, "Audit logger shutting down", nil)

	close(l.stopChan)
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// sanitize drops detail keys that may carry credentials
func sanitize(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	clean := make(map[string]any, len(details))
	for k, v := range details {
		if !isSensitiveKey(k) {
			clean[k] = v
		}
	}
	return clean
}

func isSensitiveKey(key string) bool {
	sensitiveKeys := []string{
		"password", "secret", "token", "auth", "credential",
		"private", "passphrase", "signature", "api_key_value",
	}

	keyLower := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(keyLower, sensitive) {
			return true
		}
	}
	return false
}

// Query represents an audit log query
type Query struct {
	StartTime     time.Time
	EndTime       time.Time
	EventTypes    []EventType
	Severities    []Severity
	Profiles      []string
	Resources     []string
	CorrelationID string
	Limit         int
}

// Search scans the audit log at path for matching events, oldest first
func Search(path string, query Query) ([]*AuditEvent, error) {
	file, err := os.Open(path) // #nosec G304 - configured audit log
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []*AuditEvent
	decoder := json.NewDecoder(file)

	for {
		var event AuditEvent
		if err := decoder.Decode(&event); err != nil {
			break
		}

		if !query.StartTime.IsZero() && event.Timestamp.Before(query.StartTime) {
			continue
		}
		if !query.EndTime.IsZero() && event.Timestamp.After(query.EndTime) {
			continue
		}
		if len(query.EventTypes) > 0 && !slices.Contains(query.EventTypes, event.Type) {
			continue
		}
		if len(query.Severities) > 0 && !slices.Contains(query.Severities, event.Severity) {
			continue
		}
		if len(query.Profiles) > 0 && !slices.Contains(query.Profiles, event.Profile) {
			continue
		}
		if len(query.Resources) > 0 && !slices.Contains(query.Resources, event.Resource) {
			continue
		}
		if query.CorrelationID != "" && event.CorrelationID != query.CorrelationID {
			continue
		}

		events = append(events, &event)

		if query.Limit > 0 && len(events) >= query.Limit {
			break
		}
	}

	return events, nil
}
