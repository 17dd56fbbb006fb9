// SPDX-License-Identifier: MIT

package config

import (
	"reflect"
	"strings"
)

// sensitiveKeywords mark keys whose values must never be logged.
var sensitiveKeywords = []string{
	"password",
	"secret",
	"token",
	"apikey",
	"credential",
}

// MaskSecrets converts v into maps and slices suitable for structured
// logging, replacing the values of sensitive keys with "***". Struct fields
// are keyed by their yaml name so the output mirrors the config file.
func MaskSecrets(v any) any {
	if v == nil {
		return nil
	}
	val := reflect.ValueOf(v)
	for val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Map:
		out := make(map[string]any, val.Len())
		iter := val.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			out[key] = maskValue(key, iter.Value())
		}
		return out

	case reflect.Slice, reflect.Array:
		out := make([]any, val.Len())
		for i := range out {
			out[i] = MaskSecrets(val.Index(i).Interface())
		}
		return out

	case reflect.Struct:
		out := make(map[string]any)
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			name := yamlName(field)
			if name == "-" {
				continue
			}
			out[name] = maskValue(name, val.Field(i))
		}
		return out

	default:
		return val.Interface()
	}
}

func maskValue(key string, v reflect.Value) any {
	if isSensitiveKey(key) {
		if v.Kind() == reflect.String && v.Len() == 0 {
			return ""
		}
		return "***"
	}
	if key == "url" && v.Kind() == reflect.String {
		return MaskURL(v.String())
	}
	return MaskSecrets(v.Interface())
}

func yamlName(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

// isSensitiveKey checks if a key name contains any sensitive keyword.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return true
		}
	}
	return false
}

// MaskURL masks credentials in URLs (redis://:pass@host -> redis://***@host).
func MaskURL(rawURL string) string {
	idx := strings.LastIndex(rawURL, "@")
	schemeIdx := strings.Index(rawURL, "://")
	if idx <= 0 || schemeIdx <= 0 || idx < schemeIdx {
		return rawURL
	}
	return rawURL[:schemeIdx+3] + "***" + rawURL[idx:]
}
