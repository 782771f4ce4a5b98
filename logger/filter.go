package logger

import "strings"

// DefaultMaskValue replaces sensitive values in log output.
const DefaultMaskValue = "***"

// FilterConfig defines which field names are considered sensitive.
type FilterConfig struct {
	// SensitiveFields contains field names (case-insensitive) whose values
	// are masked in logs.
	SensitiveFields []string
	// MaskValue replaces sensitive data (default: "***").
	MaskValue string
}

// DefaultFilterConfig covers the credential material this client handles:
// bearer tokens, anti-forgery tokens, and anything that smells like a secret.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"authorization", "auth",
			"token", "access_token", "refresh_token", "id_token",
			"x-csrf-token", "csrf_token", "csrf",
			"password", "secret", "credential", "credentials",
			"cookie", "set-cookie",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive fields before they reach log output.
type SensitiveDataFilter struct {
	config *FilterConfig
	index  map[string]struct{}
}

// NewSensitiveDataFilter creates a filter with the given configuration.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	idx := make(map[string]struct{}, len(config.SensitiveFields))
	for _, f := range config.SensitiveFields {
		idx[strings.ToLower(f)] = struct{}{}
	}
	return &SensitiveDataFilter{config: config, index: idx}
}

// FilterString masks the value when the key names a sensitive field.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if f.isSensitive(key) {
		return f.maskString(value)
	}
	return value
}

// FilterValue masks arbitrary values. String maps (header maps in particular)
// are filtered entry by entry; everything else is masked wholesale when the
// key itself is sensitive.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	switch v := value.(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = f.FilterString(k, val)
		}
		return out
	case map[string]any:
		return f.FilterFields(v)
	case string:
		return f.FilterString(key, v)
	default:
		if f.isSensitive(key) {
			return f.config.MaskValue
		}
		return value
	}
}

// FilterFields returns a copy of fields with sensitive entries masked.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = f.FilterValue(k, v)
	}
	return out
}

func (f *SensitiveDataFilter) isSensitive(key string) bool {
	_, ok := f.index[strings.ToLower(key)]
	return ok
}

// maskString keeps a short prefix of longer values so operators can still
// correlate tokens across log lines without exposing them.
func (f *SensitiveDataFilter) maskString(value string) string {
	if len(value) > 12 {
		return value[:4] + f.config.MaskValue
	}
	return f.config.MaskValue
}
