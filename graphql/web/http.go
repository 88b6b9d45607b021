/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package web serves the GraphQL endpoint over HTTP. A GraphQL-level
// failure (parse, validation, resolution) is still a transport-level
// success: only a malformed request body or an unsupported method gets an
// HTTP error status.
package web

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/fanflow/fanflow/graphql/api"
	"github.com/fanflow/fanflow/graphql/resolve"
	"github.com/fanflow/fanflow/graphql/schema"
	"github.com/fanflow/fanflow/store"
)

// An IServeGraphQL can serve a GraphQL endpoint over http.
type IServeGraphQL interface {
	// HTTPHandler returns a http.Handler that serves GraphQL.
	HTTPHandler() http.Handler

	// Resolve processes a GQL Request using a fresh resolver and returns a
	// GQL Response.
	Resolve(ctx context.Context, gqlReq *schema.Request) *schema.Response
}

type graphqlHandler struct {
	schema  *schema.Schema
	store   store.Store
	handler http.Handler
}

// NewServer returns an IServeGraphQL serving s over st.
func NewServer(s *schema.Schema, st store.Store) IServeGraphQL {
	gh := &graphqlHandler{schema: s, store: st}

	mux := http.NewServeMux()
	mux.Handle("/graphql", recoveryHandler(commonHeaders(gh)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	gh.handler = mux
	return gh
}

func (gh *graphqlHandler) HTTPHandler() http.Handler {
	return gh.handler
}

func (gh *graphqlHandler) Resolve(ctx context.Context, gqlReq *schema.Request) *schema.Response {
	// one resolver, and with it one set of loaders, per request
	return resolve.New(gh.schema, gh.store).Resolve(ctx, gqlReq)
}

// ServeHTTP handles a single GraphQL request end to end.
func (gh *graphqlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !gh.isValid() {
		glog.Errorf("Incorrectly configured GraphQL handler")
		writeEntry(w, schema.ErrorResponse(errors.New("Internal Server Error")), false)
		return
	}

	gqlReq, err := getRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := gh.Resolve(r.Context(), gqlReq)
	writeEntry(w, resp, strings.Contains(r.Header.Get("Accept-Encoding"), "gzip"))
}

func (gh *graphqlHandler) isValid() bool {
	return gh != nil && gh.schema != nil && gh.store != nil
}

// write chooses between the http response writer and a gzip writer and
// sends the schema response using that.
func writeEntry(w http.ResponseWriter, rr *schema.Response, acceptGzip bool) {
	var out io.Writer = w

	if acceptGzip {
		w.Header().Set("Content-Encoding", "gzip")
		gzw := gzip.NewWriter(w)
		defer func() {
			if err := gzw.Close(); err != nil {
				glog.Errorf("Closing gzip writer: %v", err)
			}
		}()
		out = gzw
	}

	if _, err := rr.WriteTo(out); err != nil {
		glog.Error(err)
	}
}

// getRequest decodes the body into a schema.Request. POST with a JSON body
// is the canonical form; POST with application/graphql carries the raw
// query text.
func getRequest(r *http.Request) (*schema.Request, error) {
	if r.Method != http.MethodPost {
		return nil, errors.Errorf("unsupported method %s, use POST", r.Method)
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse content type")
	}

	body := r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		if body, err = gzip.NewReader(body); err != nil {
			return nil, errors.Wrap(err, "unable to read gzipped body")
		}
	}

	gqlReq := &schema.Request{}
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(body).Decode(gqlReq); err != nil {
			return nil, errors.Wrap(err, "not a valid GraphQL request body")
		}
	case "application/graphql":
		b, err := io.ReadAll(body)
		if err != nil {
			return nil, errors.Wrap(err, "unable to read request body")
		}
		gqlReq.Query = string(b)
	default:
		return nil, errors.Errorf(
			"unsupported content type %q, use application/json or application/graphql", mediaType)
	}

	return gqlReq, nil
}

func commonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept-Encoding")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func recoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer api.PanicHandler(func(err error) {
			rr := schema.ErrorResponse(err)
			if _, werr := rr.WriteTo(w); werr != nil {
				glog.Error(werr)
			}
		}, r.URL.Path)

		next.ServeHTTP(w, r)
	})
}
