package utils

import "strings"

// GetField is a helper for retreiving nested JSON keys with dot notation
func GetField(key string, data map[string]interface{}) (interface{}, bool) {
	if data == nil {
		return nil, false
	}
	bits := strings.SplitN(key, ".", 2)
	val, ok := data[bits[0]]
	if !ok {
		return nil, false
	}
	if len(bits) == 1 {
		return val, true
	}
	if res, ok := val.(map[string]interface{}); ok {
		return GetField(bits[1], res)
	}
	return nil, false
}

// GetString is GetField for string leaves
// Non-string values are reported as missing
func GetString(key string, data map[string]interface{}) (string, bool) {
	val, ok := GetField(key, data)
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}
