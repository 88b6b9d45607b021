/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

// This file contains helpers for error handling and the GraphQL error types
// shared between the schema, resolve and web packages. Common use cases:
// (1) You receive an error from an external lib and would like to check/log
//     fatal. For this, use x.Check, x.Checkf.
// (2) You receive an error and would like to pass it on with stack trace
//     information. In this case, use x.Wrapf or errors.Wrapf.
// (3) You want to generate a new error with stack trace info. Use
//     errors.Errorf.

import (
	"fmt"
	"log"
	"strings"

	"github.com/pkg/errors"
)

// Check logs fatal if err != nil.
func Check(err error) {
	if err != nil {
		err = errors.Wrap(err, "")
		log.Fatalf("%+v", err)
	}
}

// Checkf is Check with extra info.
func Checkf(err error, format string, args ...interface{}) {
	if err != nil {
		err = errors.Wrapf(err, format, args...)
		log.Fatalf("%+v", err)
	}
}

// Check2 acts as convenience wrapper around Check, using the 2nd argument
// as error.
func Check2(_ interface{}, err error) {
	Check(err)
}

// Wrapf wraps err with the formatted message, keeping the stack trace.
// A nil err produces nil output.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// Ignore function is used to ignore errors deliberately, while keeping the
// linter happy.
func Ignore(_ error) {
	// Do nothing.
}

// AssertTruef logs fatal if b is false.
func AssertTruef(b bool, format string, args ...interface{}) {
	if !b {
		log.Fatalf("%+v", errors.Errorf(format, args...))
	}
}

// Location is the line and column of an error location in the query text.
type Location struct {
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// GqlError is a GraphQL error as defined in the GraphQL spec
// https://graphql.github.io/graphql-spec/June2018/#sec-Errors
type GqlError struct {
	Message    string                 `json:"message"`
	Locations  []Location             `json:"locations,omitempty"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// GqlErrorList is a list of GraphQL errors as would be found in a response.
type GqlErrorList []*GqlError

func (gqlErr *GqlError) Error() string {
	var buf strings.Builder
	if gqlErr == nil {
		return ""
	}

	buf.WriteString(gqlErr.Message)

	if len(gqlErr.Locations) > 0 {
		buf.WriteString(" (Locations: [")
		for i, loc := range gqlErr.Locations {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(fmt.Sprintf("{Line: %v, Column: %v}", loc.Line, loc.Column))
		}
		buf.WriteString("])")
	}

	return buf.String()
}

func (errList GqlErrorList) Error() string {
	var buf strings.Builder
	for i, gqlErr := range errList {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(gqlErr.Error())
	}
	return buf.String()
}

// GqlErrorf returns a new GqlError with the message and args Sprintf'ed as
// the message.
func GqlErrorf(message string, args ...interface{}) *GqlError {
	return &GqlError{
		Message: fmt.Sprintf(message, args...),
	}
}

// WithLocations adds a list of locations to a GqlError and returns the same
// GqlError (fluent style).
func (gqlErr *GqlError) WithLocations(locs ...Location) *GqlError {
	if gqlErr == nil {
		return nil
	}

	gqlErr.Locations = append(gqlErr.Locations, locs...)
	return gqlErr
}

// WithPath adds a path to a GqlError and returns the same GqlError (fluent
// style).
func (gqlErr *GqlError) WithPath(path []interface{}) *GqlError {
	if gqlErr == nil {
		return nil
	}

	gqlErr.Path = path
	return gqlErr
}
