package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// GetValue retrieves a config value by dot-separated path (e.g., "database.driver").
// Returns the value as a string and any error encountered.
func (c *Config) GetValue(path string) (string, error) {
	v, err := getValueByPath(reflect.ValueOf(c), path)
	if err != nil {
		return "", err
	}
	return formatValue(v), nil
}

// SetValue sets a config value by dot-separated path.
// The value is parsed based on the target field's type.
func (c *Config) SetValue(path, value string) error {
	return setValueByPath(reflect.ValueOf(c).Elem(), path, value)
}

// getValueByPath traverses a reflect.Value by dot-separated path.
func getValueByPath(v reflect.Value, path string) (reflect.Value, error) {
	if path == "" {
		return v, nil
	}

	parts := strings.SplitN(path, ".", 2)
	fieldName := parts[0]
	remaining := ""
	if len(parts) > 1 {
		remaining = parts[1]
	}

	// Dereference pointer
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("nil pointer at %s", fieldName)
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("expected struct, got %s", v.Kind())
	}

	// Find field by yaml tag or name
	field := findFieldByTag(v, fieldName)
	if !field.IsValid() {
		return reflect.Value{}, fmt.Errorf("unknown config key: %s", fieldName)
	}

	if remaining == "" {
		return field, nil
	}

	return getValueByPath(field, remaining)
}

// setValueByPath sets a value at the given path.
func setValueByPath(v reflect.Value, path, value string) error {
	parts := strings.SplitN(path, ".", 2)
	fieldName := parts[0]
	remaining := ""
	if len(parts) > 1 {
		remaining = parts[1]
	}

	// Dereference pointer
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return fmt.Errorf("nil pointer at %s", fieldName)
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return fmt.Errorf("expected struct, got %s", v.Kind())
	}

	// Find field by yaml tag or name
	field := findFieldByTag(v, fieldName)
	if !field.IsValid() {
		return fmt.Errorf("unknown config key: %s", fieldName)
	}

	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", fieldName)
	}

	if remaining != "" {
		return setValueByPath(field, remaining, value)
	}

	return setFieldValue(field, value)
}

// findFieldByTag finds a struct field by its yaml tag or name.
func findFieldByTag(v reflect.Value, name string) reflect.Value {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Check yaml tag
		yamlTag := field.Tag.Get("yaml")
		if yamlTag != "" {
			tagName := strings.Split(yamlTag, ",")[0]
			if tagName == name {
				return v.Field(i)
			}
		}

		// Check field name (case-insensitive)
		if strings.EqualFold(field.Name, name) {
			return v.Field(i)
		}
	}

	return reflect.Value{}
}

// setFieldValue sets a field to the parsed value.
func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", value, err)
		}
		if field.OverflowInt(i) {
			return fmt.Errorf("integer %q out of range", value)
		}
		field.SetInt(i)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// formatValue formats a reflect.Value as a string.
func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Struct:
		return fmt.Sprintf("%+v", v.Interface())
	case reflect.Ptr:
		if v.IsNil() {
			return "<nil>"
		}
		return formatValue(v.Elem())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// AllConfigPaths returns every settable config path in file order.
func AllConfigPaths() []string {
	return []string{
		"version",
		"log_level",
		"storage.backend",
		"storage.file.path",
		"database.driver",
		"database.sqlite.path",
		"database.postgres.host",
		"database.postgres.port",
		"database.postgres.database",
		"database.postgres.user",
		"database.postgres.password",
		"database.postgres.ssl_mode",
		"import.max_depth",
		"import.max_entry_size",
	}
}

// IsSecret reports whether the value at path should be masked when displayed.
func IsSecret(path string) bool {
	return strings.HasSuffix(path, ".password")
}
