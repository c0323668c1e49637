package commandstructure

import (
	"fmt"
	"strings"
)

// GetStringParam returns params[key] when it is a string
func GetStringParam(params map[string]any, key string, defaultValue string) string {
	if s, ok := params[key].(string); ok {
		return s
	}
	return defaultValue
}

// GetIntParam returns params[key] for the numeric types YAML and JSON decoders produce
func GetIntParam(params map[string]any, key string, defaultValue int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	}
	return defaultValue
}

// GetBoolParam accepts bools and the strings true/false (case-insensitive)
func GetBoolParam(params map[string]any, key string, defaultValue bool) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return defaultValue
}

// ValidateRequiredParams fails on the first key missing from params
func ValidateRequiredParams(params map[string]any, required []string) error {
	for _, key := range required {
		if _, ok := params[key]; !ok {
			return fmt.Errorf("missing required parameter: %s", key)
		}
	}
	return nil
}

// GetPositiveDimensions reads the required width and height params
func GetPositiveDimensions(params map[string]any) (width int, height int, err error) {
	if err := ValidateRequiredParams(params, []string{"width", "height"}); err != nil {
		return 0, 0, err
	}
	width = GetIntParam(params, "width", 0)
	height = GetIntParam(params, "height", 0)
	if width <= 0 {
		return 0, 0, fmt.Errorf("width must be positive, got %d", width)
	}
	if height <= 0 {
		return 0, 0, fmt.Errorf("height must be positive, got %d", height)
	}
	return width, height, nil
}
