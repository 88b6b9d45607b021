/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package web

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fanflow/fanflow/graphql/schema"
	"github.com/fanflow/fanflow/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, st.Close()) })

	sch, err := schema.New()
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(sch, st).HTTPHandler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/graphql", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, resp.Body.Close()) })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestServeQuery(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL, `{"query": "{ memberTypes { id discount } }"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out struct {
		Data struct {
			MemberTypes []struct {
				ID       string  `json:"id"`
				Discount float64 `json:"discount"`
			} `json:"memberTypes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &out))
	require.Len(t, out.Data.MemberTypes, 2)
}

func TestServeMutation(t *testing.T) {
	srv := newTestServer(t)

	body, err := json.Marshal(&schema.Request{
		Query: `mutation ($dto: CreateUserInput!) { createUser(dto: $dto) { id name } }`,
		Variables: map[string]interface{}{
			"dto": map[string]interface{}{"name": "alice", "balance": 1.0},
		},
	})
	require.NoError(t, err)

	resp := postJSON(t, srv.URL, string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := readBody(t, resp)
	require.Contains(t, got, `"name":"alice"`)
	require.NotContains(t, got, `"errors"`)
}

func TestGraphQLErrorIsTransportSuccess(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL, `{"query": "{ nope }"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := readBody(t, resp)
	require.Contains(t, got, `"errors"`)
	require.NotContains(t, got, `"data"`)
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL, `{"query": `)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnsupportedMethod(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/graphql")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnsupportedContentType(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/graphql", "text/plain", strings.NewReader("{ users { id } }"))
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApplicationGraphQLBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/graphql", "application/graphql",
		strings.NewReader(`{ memberTypes { id } }`))
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), `"basic"`)
}

func TestGzippedRequestBody(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"query": "{ memberTypes { id } }"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/graphql", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), `"business"`)
}

func TestGzippedResponse(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/graphql",
		strings.NewReader(`{"query": "{ memberTypes { id } }"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")

	// stop the transport from transparently un-gzipping
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	zr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Contains(t, string(b), `"memberTypes"`)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/graphql", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, readBody(t, resp))
}
