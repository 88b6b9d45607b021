/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package resolve

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
)

// Argument extraction. Validation has already checked argument presence and
// types against the schema; what it cannot check is the lexical shape of
// UUID scalars, which is enforced here before any store call.

func errUnknownField(f *ast.Field) error {
	return errors.Errorf("no resolver found for field %q", f.Name)
}

func argValue(f *ast.Field, name string, vars map[string]interface{}) (interface{}, error) {
	a := f.Arguments.ForName(name)
	if a == nil {
		return nil, errors.Errorf("required argument %q of %s is missing", name, f.Name)
	}
	v, err := a.Value.Value(vars)
	if err != nil {
		return nil, errors.Wrapf(err, "reading argument %q of %s", name, f.Name)
	}
	return v, nil
}

func stringArg(f *ast.Field, name string, vars map[string]interface{}) (string, error) {
	v, err := argValue(f, name, vars)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("argument %q of %s is not a string", name, f.Name)
	}
	return s, nil
}

func uuidArg(f *ast.Field, name string, vars map[string]interface{}) (string, error) {
	s, err := stringArg(f, name, vars)
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", errors.Errorf("argument %q of %s is not a valid UUID: %q", name, f.Name, s)
	}
	return s, nil
}

func objectArg(f *ast.Field, name string, vars map[string]interface{}) (map[string]interface{}, error) {
	v, err := argValue(f, name, vars)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("argument %q of %s is not an input object", name, f.Name)
	}
	return m, nil
}

func stringField(dto map[string]interface{}, key string) (string, error) {
	v, ok := dto[key]
	if !ok {
		return "", errors.Errorf("input field %q is missing", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("input field %q is not a string", key)
	}
	return s, nil
}

func uuidField(dto map[string]interface{}, key string) (string, error) {
	s, err := stringField(dto, key)
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", errors.Errorf("input field %q is not a valid UUID: %q", key, s)
	}
	return s, nil
}

func optStringField(dto map[string]interface{}, key string) (*string, error) {
	v, ok := dto[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, errors.Errorf("input field %q is not a string", key)
	}
	return &s, nil
}

func boolField(dto map[string]interface{}, key string) (bool, error) {
	v, ok := dto[key]
	if !ok {
		return false, errors.Errorf("input field %q is missing", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Errorf("input field %q is not a boolean", key)
	}
	return b, nil
}

func optBoolField(dto map[string]interface{}, key string) (*bool, error) {
	v, ok := dto[key]
	if !ok || v == nil {
		return nil, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, errors.Errorf("input field %q is not a boolean", key)
	}
	return &b, nil
}

// floatField reads a numeric input field, defaulting when absent. Literal
// ints arrive as int64, literal floats as float64, and values bound through
// JSON variables as float64.
func floatField(dto map[string]interface{}, key string, def float64) (float64, error) {
	v, ok := dto[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	}
	return 0, errors.Errorf("input field %q is not a number", key)
}

func intField(dto map[string]interface{}, key string) (int, error) {
	v, ok := dto[key]
	if !ok {
		return 0, errors.Errorf("input field %q is missing", key)
	}
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	}
	return 0, errors.Errorf("input field %q is not an integer", key)
}
