package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/photark-io/photark/internal/cookies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShell = `<html><script>
window.WIZ_global_data = {"oPEP7c":"user@example.com","FdrFJe":"-123456789","cfb2h":"boq_photosuiserver_20240101.00_p0","eptZe":"\/_\/PhotosUi\/","SNlM0e":"ABcd=efG&hi:1700000000000","Dbw5Ud":""};
</script></html>`

func testJar() []cookies.Cookie {
	return []cookies.Cookie{
		{Name: "SID", Value: "abc"},
		{Name: "HSID", Value: "def"},
	}
}

func TestBootstrap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/", r.URL.Path)
		assert.Equal(t, "SID=abc; HSID=def", r.Header.Get("Cookie"))
		fmt.Fprint(w, testShell)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	session, err := client.Bootstrap(context.Background(), testJar(), "")
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", session.Account)
	assert.Equal(t, "-123456789", session.FSid)
	assert.Equal(t, "boq_photosuiserver_20240101.00_p0", session.BL)
	assert.Equal(t, "/_/PhotosUi/", session.Path)
	// JS escapes in the anti-forgery token are reversed.
	assert.Equal(t, "ABcd=efG&hi:1700000000000", session.AT)
	assert.Empty(t, session.Rapt)
}

func TestBootstrapMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>{"oPEP7c":"user@example.com"}</html>`)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Bootstrap(context.Background(), testJar(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "f.sid/bl/at")
}

func TestExecute(t *testing.T) {
	inner := `[null,null,null,null,null,null,[10,null,null,3]]`
	var gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/_/PhotosUi/data/batchexecute", r.URL.Path)
		assert.Equal(t, "EzwWhf", r.URL.Query().Get("rpcids"))
		assert.Equal(t, "-123", r.URL.Query().Get("f.sid"))
		assert.Equal(t, "boq_test", r.URL.Query().Get("bl"))
		assert.Equal(t, "none", r.URL.Query().Get("pageId"))
		assert.Equal(t, "c", r.URL.Query().Get("rt"))
		assert.Equal(t, "application/x-www-form-urlencoded;charset=UTF-8", r.Header.Get("Content-Type"))

		buf, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = string(buf)

		fmt.Fprint(w, EncodeEnvelope("EzwWhf", inner))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	session := Session{FSid: "-123", BL: "boq_test", Path: "/_/PhotosUi/", AT: "token"}

	data, raw, err := client.Execute(context.Background(), testJar(), &session, "EzwWhf", []any{}, "")
	require.NoError(t, err)
	assert.Equal(t, inner, raw)

	list, ok := data.([]any)
	require.True(t, ok)
	require.Len(t, list, 7)

	assert.True(t, strings.HasPrefix(gotBody, "f.req="))
	assert.Contains(t, gotBody, "&at=token&")
	// The wrapped envelope carries the rpcid and the request data as a
	// nested JSON string.
	decoded, err := unwrapRequestBody(gotBody)
	require.NoError(t, err)
	assert.Equal(t, "EzwWhf", decoded[0])
	assert.Equal(t, "[]", decoded[1])
	assert.Equal(t, "generic", decoded[3])
}

// unwrapRequestBody decodes the f.req form value back into the innermost
// RPC frame.
func unwrapRequestBody(body string) ([]any, error) {
	values, err := parseForm(body)
	if err != nil {
		return nil, err
	}
	var envelope []any
	if err := json.Unmarshal([]byte(values["f.req"]), &envelope); err != nil {
		return nil, err
	}
	return envelope[0].([]any)[0].([]any), nil
}

func parseForm(body string) (map[string]string, error) {
	parsed, err := url.ParseQuery(body)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(parsed))
	for key := range parsed {
		values[key] = parsed.Get(key)
	}
	return values, nil
}

func TestExecuteReauthOn403(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, testShell)
			return
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		// The retry must carry the freshly bootstrapped tokens.
		assert.Equal(t, "-123456789", r.URL.Query().Get("f.sid"))
		fmt.Fprint(w, EncodeEnvelope("zy0IHe", `[[],null]`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, RetryBaseDelay: time.Millisecond})
	session := Session{FSid: "stale", BL: "stale", Path: "/_/PhotosUi/", AT: "stale"}

	data, _, err := client.Execute(context.Background(), testJar(), &session, "zy0IHe", []any{nil}, "")
	require.NoError(t, err)
	assert.NotNil(t, data)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "user@example.com", session.Account)
}

func TestExecuteRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, MaxRetries: 2, RetryBaseDelay: time.Millisecond})
	session := Session{FSid: "a", BL: "b", Path: "/_/PhotosUi/", AT: "c"}

	_, _, err := client.Execute(context.Background(), testJar(), &session, "lcxiM", []any{}, "")
	require.Error(t, err)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
}

func TestParseEnvelope(t *testing.T) {
	body := ")]}'\n\n[[\"wrb.fr\",\"EzwWhf\",\"[1,2,3]\",null,null,null,\"generic\"]]\n"
	data, raw, err := ParseEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", raw)
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, data)
}

func TestParseEnvelopeNullPayload(t *testing.T) {
	body := ")]}'\n\n[[\"wrb.fr\",\"XwAOJf\",null,null,null,null,\"generic\"]]\n"
	data, raw, err := ParseEnvelope(body)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Empty(t, raw)
}

func TestParseEnvelopeNoFrame(t *testing.T) {
	_, _, err := ParseEnvelope(")]}'\n\n[17]\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no wrb.fr frame")
}

func TestLinearBackOff(t *testing.T) {
	b := newLinearBackOff(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 300*time.Millisecond, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
}
