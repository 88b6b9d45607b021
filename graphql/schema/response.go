/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/fanflow/fanflow/x"
)

// Response is a GraphQL response. Data accumulates the `"field": value`
// pairs of the data object as top-level fields complete, in request order;
// pre-execution failures leave it empty, and then only the error list is
// written out, per the spec's "data must not be present" rule.
type Response struct {
	Errors x.GqlErrorList
	Data   bytes.Buffer
}

// ErrorResponse formats an error as a list of GraphQL errors and builds a
// response with that error list and no data. Returned when execution never
// ran: parse errors, validation errors, depth-limit rejections.
func ErrorResponse(err error) *Response {
	return &Response{Errors: AsGQLErrors(err)}
}

// WithError generates GraphQL errors from err and records those in r.
func (r *Response) WithError(err error) {
	r.Errors = append(r.Errors, AsGQLErrors(err)...)
}

// AddData adds a `"field": value` pair to the response's data object. The
// pair arrives without enclosing braces; WriteTo adds those.
func (r *Response) AddData(p []byte) {
	if r == nil || len(p) == 0 {
		return
	}
	if r.Data.Len() > 0 {
		x.Check2(r.Data.WriteRune(','))
	}
	x.Check2(r.Data.Write(p))
}

// WriteTo writes the response as JSON to w.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	if r == nil {
		glog.Error("Attempt to write a nil Response")
		i, err := w.Write([]byte(
			`{"errors":[{"message":"Internal error - no response to write."}]}`))
		return int64(i), err
	}

	var buf bytes.Buffer
	x.Check2(buf.WriteRune('{'))

	if len(r.Errors) > 0 {
		js, err := json.Marshal(r.Errors)
		if err != nil {
			glog.Errorf("Failed to marshal GraphQL errors: %v", err)
			js = []byte(`[{"message":"Internal error - failed to marshal errors."}]`)
		}
		x.Check2(buf.WriteString(`"errors":`))
		x.Check2(buf.Write(js))
	}

	if r.Data.Len() > 0 {
		if len(r.Errors) > 0 {
			x.Check2(buf.WriteRune(','))
		}
		x.Check2(buf.WriteString(`"data":{`))
		x.Check2(buf.Write(r.Data.Bytes()))
		x.Check2(buf.WriteRune('}'))
	}

	x.Check2(buf.WriteRune('}'))

	i, err := w.Write(buf.Bytes())
	return int64(i), errors.Wrapf(err, "writing GraphQL response")
}
