package driver

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Declared attribute and point value types.
const (
	TypeInt     = "int"
	TypeLong    = "long"
	TypeFloat   = "float"
	TypeDouble  = "double"
	TypeBoolean = "boolean"
	TypeString  = "string"
)

// AttributeInfo is a resolved attribute value: the raw value together with
// the type declared by its attribute definition.
type AttributeInfo struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// String returns the raw value.
func (a AttributeInfo) String() string { return a.Value }

// Int converts the value to int.
func (a AttributeInfo) Int() (int, error) {
	v, err := cast.ToIntE(strings.TrimSpace(a.Value))
	if err != nil {
		return 0, fmt.Errorf("%w: %q as int: %w", ErrAttributeType, a.Value, err)
	}
	return v, nil
}

// Int64 converts the value to int64.
func (a AttributeInfo) Int64() (int64, error) {
	v, err := cast.ToInt64E(strings.TrimSpace(a.Value))
	if err != nil {
		return 0, fmt.Errorf("%w: %q as int64: %w", ErrAttributeType, a.Value, err)
	}
	return v, nil
}

// Float converts the value to float64.
func (a AttributeInfo) Float() (float64, error) {
	v, err := cast.ToFloat64E(strings.TrimSpace(a.Value))
	if err != nil {
		return 0, fmt.Errorf("%w: %q as float: %w", ErrAttributeType, a.Value, err)
	}
	return v, nil
}

// Bool converts the value to bool ("true", "1", "false", "0", ...).
func (a AttributeInfo) Bool() (bool, error) {
	v, err := cast.ToBoolE(strings.TrimSpace(a.Value))
	if err != nil {
		return false, fmt.Errorf("%w: %q as bool: %w", ErrAttributeType, a.Value, err)
	}
	return v, nil
}

// Typed converts the value according to its declared Type.
func (a AttributeInfo) Typed() (any, error) {
	switch strings.ToLower(a.Type) {
	case TypeInt:
		return a.Int()
	case TypeLong:
		return a.Int64()
	case TypeFloat, TypeDouble:
		return a.Float()
	case TypeBoolean:
		return a.Bool()
	default:
		return a.Value, nil
	}
}

// Attribute looks up name in attrs and converts it with conv. It fails with
// ErrMissingAttribute when name is absent.
//
// Example:
//
//	port, err := driver.Attribute(driverInfo, "port", driver.AttributeInfo.Int)
func Attribute[T any](attrs map[string]AttributeInfo, name string, conv func(AttributeInfo) (T, error)) (T, error) {
	info, ok := attrs[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrMissingAttribute, name)
	}
	return conv(info)
}

// FormatValue renders v as a point value string for the declared type.
func FormatValue(pointType string, v float64) string {
	switch strings.ToLower(pointType) {
	case TypeInt, TypeLong:
		return cast.ToString(int64(v))
	case TypeBoolean:
		return cast.ToString(v != 0)
	default:
		return cast.ToString(v)
	}
}
