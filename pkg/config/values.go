package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Values wraps a decoded YAML or JSON document for type-tolerant extraction.
// Every accessor returns its default when the key is missing or the value
// cannot be converted. Keys may be dotted paths into nested maps.
type Values struct {
	data map[string]any
}

// NewValues wraps data. A nil map yields empty Values.
func NewValues(data map[string]any) Values {
	if data == nil {
		data = make(map[string]any)
	}
	return Values{data: data}
}

// ValuesFromFile loads a .yaml, .yml or .json file.
func ValuesFromFile(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Values{}, fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return ValuesFromYAML(data)
	case ".json":
		return ValuesFromJSON(data)
	default:
		return Values{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// ValuesFromYAML parses YAML data.
func ValuesFromYAML(data []byte) (Values, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Values{}, fmt.Errorf("parse yaml: %w", err)
	}
	return NewValues(m), nil
}

// ValuesFromJSON parses JSON data.
func ValuesFromJSON(data []byte) (Values, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Values{}, fmt.Errorf("parse json: %w", err)
	}
	return NewValues(m), nil
}

// lookup resolves a dotted key.
func (v Values) lookup(key string) (any, bool) {
	cur := any(v.data)
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Has reports whether key exists.
func (v Values) Has(key string) bool {
	_, ok := v.lookup(key)
	return ok
}

// Section returns the nested map at key as Values, empty if absent.
func (v Values) Section(key string) Values {
	raw, ok := v.lookup(key)
	if !ok {
		return NewValues(nil)
	}
	m, _ := raw.(map[string]any)
	return NewValues(m)
}

// String returns the string at key, or defaultVal.
func (v Values) String(key, defaultVal string) string {
	raw, ok := v.lookup(key)
	if !ok {
		return defaultVal
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return defaultVal
}

// Duration returns the duration at key, or defaultVal.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int, int64, float64: interpreted as seconds
func (v Values) Duration(key string, defaultVal time.Duration) time.Duration {
	raw, ok := v.lookup(key)
	if !ok {
		return defaultVal
	}
	switch val := raw.(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case float64:
		return time.Duration(val * float64(time.Second))
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	}
	return defaultVal
}

// Bool returns the boolean at key, or defaultVal.
func (v Values) Bool(key string, defaultVal bool) bool {
	raw, ok := v.lookup(key)
	if !ok {
		return defaultVal
	}
	if b, ok := raw.(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer at key, or defaultVal. Floats convert only when
// they have no fractional part.
func (v Values) Int(key string, defaultVal int) int {
	raw, ok := v.lookup(key)
	if !ok {
		return defaultVal
	}
	switch val := raw.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the float at key, or defaultVal.
func (v Values) Float(key string, defaultVal float64) float64 {
	raw, ok := v.lookup(key)
	if !ok {
		return defaultVal
	}
	switch val := raw.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// StringSlice returns the string list at key, or defaultVal if any element
// is not a string.
func (v Values) StringSlice(key string, defaultVal []string) []string {
	raw, ok := v.lookup(key)
	if !ok {
		return defaultVal
	}
	switch val := raw.(type) {
	case []string:
		return val
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			result = append(result, s)
		}
		return result
	}
	return defaultVal
}
