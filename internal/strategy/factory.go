package strategy

import (
	"encoding/json"
	"math"
)

// FloatParam은 설정 맵에서 실수 값을 읽습니다. JSON/YAML 디코딩 결과(float64, int, json.Number)를 모두 허용합니다.
func FloatParam(config map[string]interface{}, key string, fallback float64) float64 {
	if config == nil {
		return fallback
	}
	switch v := config[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return fallback
}

// IntParam은 설정 맵에서 정수 값을 읽습니다
func IntParam(config map[string]interface{}, key string, fallback int) int {
	if config == nil {
		return fallback
	}
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	}
	return fallback
}

// BoolParam은 설정 맵에서 불리언 값을 읽습니다
func BoolParam(config map[string]interface{}, key string, fallback bool) bool {
	if config == nil {
		return fallback
	}
	if v, ok := config[key].(bool); ok {
		return v
	}
	return fallback
}

// MergeConfig는 기본 설정 위에 사용자 설정을 덮어씁니다
func MergeConfig(defaults, overrides map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
