package utils

// StringField returns m[key] when it holds a string, otherwise "".
func StringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
