// Package validation checks values that arrive from MCP clients and the CLI
// before they reach the Content Management API or the filesystem.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// Validator provides input validation and sanitization
type Validator struct {
	idPattern          *regexp.Regexp
	apiKeyPattern      *regexp.Regexp
	tokenPattern       *regexp.Regexp
	profileNamePattern *regexp.Regexp
	environmentPattern *regexp.Regexp

	commandInjectionPatterns []*regexp.Regexp
	pathTraversalPatterns    []*regexp.Regexp
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		// record, upload and model IDs: numeric or base64url-ish
		idPattern:     regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`),
		apiKeyPattern: regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`),
		// CMA API tokens are opaque alphanumerics
		tokenPattern:       regexp.MustCompile(`^[A-Za-z0-9_-]{20,128}$`),
		profileNamePattern: regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`),
		environmentPattern: regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`),

		commandInjectionPatterns: []*regexp.Regexp{
			regexp.MustCompile(`[;&|]`),
			regexp.MustCompile("`"),
			regexp.MustCompile(`\$\(`),
			regexp.MustCompile(`\$\{`),
			regexp.MustCompile(`<<|>>`),
			regexp.MustCompile(`\n|\r`),
			regexp.MustCompile(`[<>]`),
			regexp.MustCompile(`\x00`),
		},

		pathTraversalPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\.\.[\\/]`),
			regexp.MustCompile(`(?i)%2e%2e|%252e%252e`),
			regexp.MustCompile(`\x00`),
		},
	}
}

// ValidateID validates a record, upload or model ID
func (v *Validator) ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if !v.idPattern.MatchString(id) {
		return fmt.Errorf("invalid ID %q: must contain only letters, digits, underscores and hyphens", v.TruncateString(id, 32))
	}
	return nil
}

// ValidateAPIKey validates a model or field API key
func (v *Validator) ValidateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}
	if !v.apiKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid API key %q: must be lowercase snake_case", v.TruncateString(key, 32))
	}
	return nil
}

// ValidateToken validates a Content Management API token
func (v *Validator) ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("API token cannot be empty")
	}
	if strings.TrimSpace(token) != token {
		return fmt.Errorf("API token has leading or trailing whitespace")
	}
	if len(token) < 20 {
		return fmt.Errorf("API token appears to be too short")
	}
	if !v.tokenPattern.MatchString(token) {
		return fmt.Errorf("invalid API token format")
	}
	return nil
}

// ValidateProfileName validates a profile name
func (v *Validator) ValidateProfileName(name string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("profile name too long: maximum 64 characters")
	}
	if !v.profileNamePattern.MatchString(name) {
		return fmt.Errorf("invalid profile name: must contain only alphanumeric characters, dots, underscores, and hyphens")
	}

	reservedNames := []string{"system", "root", "admin", "config"}
	for _, reserved := range reservedNames {
		if strings.EqualFold(name, reserved) {
			return fmt.Errorf("profile name '%s' is reserved", name)
		}
	}
	return nil
}

// ValidateEnvironment validates a sandbox environment name. Empty means the primary environment.
func (v *Validator) ValidateEnvironment(env string) error {
	if env == "" {
		return nil
	}
	if !v.environmentPattern.MatchString(env) {
		return fmt.Errorf("invalid environment %q: must be lowercase letters, digits and hyphens", v.TruncateString(env, 32))
	}
	return nil
}

// ValidateFilePath validates a local file path used as an upload source
func (v *Validator) ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("file path contains null bytes")
	}
	if v.containsPathTraversal(path) {
		return fmt.Errorf("file path contains invalid characters or patterns")
	}
	if v.containsFilePathCommandInjection(path) {
		return fmt.Errorf("file path contains invalid characters")
	}
	if strings.HasPrefix(filepath.Clean(path), "..") {
		return fmt.Errorf("file path cannot traverse to parent directories")
	}
	return nil
}

// ValidateURL validates a remote URL: an upload source or a CMA base URL
func (v *Validator) ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if len(raw) > 2048 {
		return fmt.Errorf("URL cannot exceed 2048 characters")
	}
	if strings.ContainsAny(raw, "\x00\r\n") {
		return fmt.Errorf("URL contains invalid characters")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// ValidateExpression validates a jq source expression
func (v *Validator) ValidateExpression(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("expression cannot be empty")
	}
	if len(expr) > 1024 {
		return fmt.Errorf("expression cannot exceed 1024 characters")
	}
	if strings.Contains(expr, "\x00") {
		return fmt.Errorf("expression contains null bytes")
	}
	return nil
}

// ValidateSearchQuery validates a dropdown search filter
func (v *Validator) ValidateSearchQuery(query string) error {
	if len(query) > 256 {
		return fmt.Errorf("search query too long: maximum 256 characters")
	}
	if v.containsCommandInjection(query) {
		return fmt.Errorf("search query contains invalid characters")
	}
	return nil
}

// ValidateFieldKeys checks that every key of a field map is a plausible API key.
// Helper keys starting with an underscore are allowed through.
func (v *Validator) ValidateFieldKeys(fields map[string]any) error {
	for key := range fields {
		if strings.HasPrefix(key, "_") {
			continue
		}
		if key == "" || v.containsCommandInjection(key) || v.containsDangerousUnicode(key) {
			return fmt.Errorf("field key %q contains invalid characters", v.TruncateString(key, 32))
		}
	}
	return nil
}

// SanitizeString removes null bytes and control characters except tab and newlines
func (v *Validator) SanitizeString(input string) string {
	var sanitized strings.Builder
	for _, r := range input {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		sanitized.WriteRune(r)
	}
	return sanitized.String()
}

func (v *Validator) containsCommandInjection(input string) bool {
	for _, pattern := range v.commandInjectionPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

func (v *Validator) containsDangerousUnicode(input string) bool {
	for _, r := range input {
		if unicode.Is(unicode.Cf, r) {
			return true
		}
	}
	return false
}

// paths need slashes, so this is narrower than containsCommandInjection
func (v *Validator) containsFilePathCommandInjection(path string) bool {
	for _, pattern := range []string{";", "|", "&", "$", "`", "<", ">", "\n", "\r", "%00"} {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

func (v *Validator) containsPathTraversal(input string) bool {
	for _, pattern := range v.pathTraversalPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// TruncateString truncates s to maxLen runes, marking the cut with an ellipsis
func (v *Validator) TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
