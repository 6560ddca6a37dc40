package mcp

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus represents the health check result
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Profile   string    `json:"profile,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Checks    []Check   `json:"checks,omitempty"`
}

// Check represents an individual health check
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *HealthStatus) degrade() {
	if h.Status == "healthy" {
		h.Status = "degraded"
	}
}

// HealthCheck checks storage, the active profile and its API connection
func (s *Server) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	s.mu.RLock()
	profile := s.currentProfile
	d, loaded := s.profiles[profile]
	s.mu.RUnlock()

	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Profile:   profile,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Checks:    []Check{},
	}

	storageCheck := Check{Name: "storage", Status: "ok"}
	if s.storage == nil {
		storageCheck.Status = "failed"
		storageCheck.Error = "storage not initialized"
		status.Status = "unhealthy"
	}
	status.Checks = append(status.Checks, storageCheck)

	profileCheck := Check{Name: "profile", Status: "ok"}
	switch {
	case profile == "":
		profileCheck.Status = "warning"
		profileCheck.Error = "no profile loaded"
		status.degrade()
	case !loaded || d == nil:
		profileCheck.Status = "failed"
		profileCheck.Error = "profile not accessible"
		status.Status = "unhealthy"
	}
	status.Checks = append(status.Checks, profileCheck)

	connCheck := Check{Name: "connection", Status: "ok"}
	if profile != "" && loaded && d != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := d.SiteLocales(checkCtx); err != nil {
			connCheck.Status = "failed"
			connCheck.Error = fmt.Sprintf("connection test failed: %v", err)
			status.Status = "unhealthy"
		}
	} else {
		connCheck.Status = "skipped"
		connCheck.Error = "no active profile"
	}
	status.Checks = append(status.Checks, connCheck)

	auditCheck := Check{Name: "audit_logger", Status: "ok"}
	if s.logger == nil {
		auditCheck.Status = "warning"
		auditCheck.Error = "audit logging disabled"
		status.degrade()
	}
	status.Checks = append(status.Checks, auditCheck)

	rateCheck := Check{Name: "rate_limiter", Status: "ok"}
	if s.rateLimiter == nil {
		rateCheck.Status = "disabled"
	} else if !s.rateLimiter.Available() {
		rateCheck.Status = "warning"
		rateCheck.Error = "rate limit exceeded"
		status.degrade()
	}
	status.Checks = append(status.Checks, rateCheck)

	return status, nil
}

// executeHealthCheck returns a short status, with check details when not healthy
func (s *Server) executeHealthCheck(ctx context.Context, _ map[string]any) (any, error) {
	health, err := s.HealthCheck(ctx)
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"status":     health.Status,
		"timestamp":  health.Timestamp.Format(time.RFC3339),
		"uptime":     health.Uptime,
		"profile":    health.Profile,
		"session_id": s.sessionID,
	}
	if health.Status != "healthy" {
		checks := make(map[string]any, len(health.Checks))
		for _, check := range health.Checks {
			info := map[string]string{"status": check.Status}
			if check.Error != "" {
				info["error"] = check.Error
			}
			checks[check.Name] = info
		}
		result["checks"] = checks
	}
	return result, nil
}
