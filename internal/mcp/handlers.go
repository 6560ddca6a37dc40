package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/philippherzig/datocms-mcp/internal/audit"
)

const confirmPromptName = "confirm_action"

// confirmationRequired answers a destructive tool call with the data the
// client needs to ask the user and come back through execute_confirmed_action.
func (s *Server) confirmationRequired(tool string, args map[string]any, action, warning string) (any, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool arguments: %w", err)
	}

	s.logSystem(audit.EventAccess, "Confirmation required", map[string]any{
		"tool":       tool,
		"action":     action,
		"profile":    s.profileName(),
		"session_id": s.sessionID,
	})

	return map[string]any{
		"status":  "confirmation_required",
		"message": fmt.Sprintf("DatoCMS requires confirmation to %s. Use the '%s' prompt.", strings.ToLower(action[:1])+action[1:], confirmPromptName),
		"confirmation_details": map[string]any{
			"prompt_name": confirmPromptName,
			"prompt_arguments": map[string]any{
				"action_description":      action,
				"warning_message":         warning,
				"original_tool_name":      tool,
				"original_tool_args_json": string(argsJSON),
			},
		},
	}, nil
}

func (s *Server) executeConfirmedAction(ctx context.Context, args map[string]any) (any, error) {
	tool := argString(args, "original_tool_name")
	decision := strings.ToLower(argString(args, "user_decision"))

	fn, ok := s.confirmed[tool]
	if !ok {
		return nil, fmt.Errorf("tool %q does not take confirmation", tool)
	}

	var original map[string]any
	if err := json.Unmarshal([]byte(argString(args, "original_tool_args_json")), &original); err != nil {
		return nil, fmt.Errorf("invalid original_tool_args_json: %w", err)
	}

	switch decision {
	case "approve":
		s.logger.LogAccess("tool", tool, s.profileName(), true, map[string]any{"confirmed": true})
		return fn(ctx, original)
	case "deny":
		s.logger.LogAccess("tool", tool, s.profileName(), false, map[string]any{"reason": "denied by user"})
		return map[string]any{
			"status":  "cancelled",
			"message": fmt.Sprintf("%s was not run: the user denied it", tool),
		}, nil
	default:
		return nil, fmt.Errorf("user_decision must be 'approve' or 'deny', got %q", decision)
	}
}

// Sessions map onto credential profiles

func (s *Server) executeListProfiles(_ context.Context, _ map[string]any) (any, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("profile storage not configured")
	}
	names := s.storage.ListProfiles()

	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]map[string]any, 0, len(names))
	for _, name := range names {
		_, loaded := s.profiles[name]
		profiles = append(profiles, map[string]any{
			"name":   name,
			"active": name == s.currentProfile,
			"loaded": loaded,
		})
	}
	return map[string]any{
		"profiles":   profiles,
		"current":    s.currentProfile,
		"session_id": s.sessionID,
	}, nil
}

func (s *Server) executeSwitchProfile(ctx context.Context, args map[string]any) (any, error) {
	name := argString(args, "profile")
	if name == "" {
		return nil, fmt.Errorf("profile is required")
	}
	if s.storage == nil || !slices.Contains(s.storage.ListProfiles(), name) {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	if err := s.SwitchProfile(ctx, name); err != nil {
		return nil, err
	}

	s.logSystem(audit.EventAccess, "Profile switched", map[string]any{
		"profile":    name,
		"session_id": s.sessionID,
	})

	d, _, err := s.currentDispatcher()
	if err != nil {
		return nil, err
	}
	result := map[string]any{"profile": name, "status": "active"}
	if locales, err := d.SiteLocales(ctx); err == nil {
		result["locales"] = locales
	}
	return result, nil
}

// EndSession forgets a loaded profile. The active profile cannot be dropped.
func (s *Server) EndSession(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == s.currentProfile {
		return fmt.Errorf("cannot end the active profile %q", name)
	}
	if _, ok := s.profiles[name]; !ok {
		return fmt.Errorf("profile not loaded: %s", name)
	}
	delete(s.profiles, name)
	return nil
}

func (s *Server) executeEndSession(_ context.Context, args map[string]any) (any, error) {
	name := argString(args, "profile")
	if err := s.EndSession(name); err != nil {
		return nil, err
	}
	return map[string]any{"profile": name, "status": "ended"}, nil
}
