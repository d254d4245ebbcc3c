package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/kailas-cloud/modeld/internal/transport/router"
)

// --- Mocks ---

type recordingDispatcher struct {
	calls int
	last  router.Request
	env   router.Envelope
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req router.Request) router.Envelope {
	d.calls++
	d.last = req
	if d.env.Status == 0 {
		return router.Envelope{Status: http.StatusOK, Kind: router.Text, Body: []byte("ok")}
	}
	return d.env
}

func newRequest(method, path, body string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func withLength(body string) map[string]string {
	return map[string]string{"Content-Length": strconv.Itoa(len(body))}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestHandler_PostBodyPassedThrough(t *testing.T) {
	d := &recordingDispatcher{}
	body := `["hello","world"]`
	rr := serve(NewHandler(d, 0), newRequest("POST", "/word2vec", body, withLength(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if d.last.Method != "POST" || d.last.Path != "/word2vec" {
		t.Errorf("request = %+v", d.last)
	}
	if string(d.last.Body) != body {
		t.Errorf("body = %q, want %q", d.last.Body, body)
	}
}

func TestHandler_GetIgnoresBody(t *testing.T) {
	d := &recordingDispatcher{}
	serve(NewHandler(d, 0), newRequest("GET", "/matrix-factorization/m", "ignored", withLength("ignored")))

	if d.last.Body != nil {
		t.Errorf("GET body = %q, want nil", d.last.Body)
	}
}

func TestHandler_DeleteIgnoresBody(t *testing.T) {
	d := &recordingDispatcher{}
	serve(NewHandler(d, 0), newRequest("DELETE", "/word2vec", "x", withLength("x")))

	if d.last.Body != nil {
		t.Errorf("DELETE body = %q, want nil", d.last.Body)
	}
}

func TestHandler_MissingContentLengthReadsNothing(t *testing.T) {
	d := &recordingDispatcher{}
	serve(NewHandler(d, 0), newRequest("POST", "/", `{"rank":1}`, nil))

	if len(d.last.Body) != 0 {
		t.Errorf("body = %q, want empty", d.last.Body)
	}
}

func TestHandler_NonNumericContentLengthReadsNothing(t *testing.T) {
	d := &recordingDispatcher{}
	serve(NewHandler(d, 0), newRequest("POST", "/", `{}`, map[string]string{"Content-Length": "abc"}))

	if d.calls != 1 || len(d.last.Body) != 0 {
		t.Errorf("calls = %d, body = %q", d.calls, d.last.Body)
	}
}

func TestHandler_ReadsOnlyDeclaredLength(t *testing.T) {
	d := &recordingDispatcher{}
	serve(NewHandler(d, 0), newRequest("POST", "/", `["a"]trailing`, map[string]string{"Content-Length": "5"}))

	if string(d.last.Body) != `["a"]` {
		t.Errorf("body = %q", d.last.Body)
	}
}

func TestHandler_ShortRead(t *testing.T) {
	d := &recordingDispatcher{}
	rr := serve(NewHandler(d, 0), newRequest("POST", "/", "abc", map[string]string{"Content-Length": "10"}))

	assertResponse(t, rr, http.StatusBadRequest, msgBodyFailed)
	if d.calls != 0 {
		t.Error("dispatcher must not be called on a short read")
	}
}

func TestHandler_BodyTooLarge(t *testing.T) {
	d := &recordingDispatcher{}
	body := strings.Repeat("x", 11)
	rr := serve(NewHandler(d, 10), newRequest("POST", "/", body, withLength(body)))

	assertResponse(t, rr, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
	if d.calls != 0 {
		t.Error("dispatcher must not be called for an oversized body")
	}
}

func TestHandler_BodyAtLimit(t *testing.T) {
	d := &recordingDispatcher{}
	body := strings.Repeat("x", 10)
	rr := serve(NewHandler(d, 10), newRequest("POST", "/", body, withLength(body)))

	if rr.Code != http.StatusOK || d.calls != 1 {
		t.Errorf("status = %d, calls = %d", rr.Code, d.calls)
	}
}

func TestHandler_UnknownCharset(t *testing.T) {
	d := &recordingDispatcher{}
	h := withLength("{}")
	h["Content-Encoding"] = "gzip"
	rr := serve(NewHandler(d, 0), newRequest("POST", "/", "{}", h))

	assertResponse(t, rr, http.StatusBadRequest, msgBodyFailed)
}

func TestHandler_Latin1Decoded(t *testing.T) {
	d := &recordingDispatcher{}
	raw := "[\"caf\xe9\"]"
	h := withLength(raw)
	h["Content-Encoding"] = "latin1"
	serve(NewHandler(d, 0), newRequest("POST", "/word2vec", raw, h))

	if string(d.last.Body) != `["café"]` {
		t.Errorf("body = %q", d.last.Body)
	}
}

func TestHandler_InvalidUTF8(t *testing.T) {
	d := &recordingDispatcher{}
	raw := "[\"\xff\"]"
	rr := serve(NewHandler(d, 0), newRequest("POST", "/word2vec", raw, withLength(raw)))

	assertResponse(t, rr, http.StatusBadRequest, msgBodyFailed)
}

func TestHandler_ExplicitUTF8Charset(t *testing.T) {
	d := &recordingDispatcher{}
	raw := `["naïve"]`
	h := withLength(raw)
	h["Content-Encoding"] = "UTF-8"
	serve(NewHandler(d, 0), newRequest("POST", "/word2vec", raw, h))

	if string(d.last.Body) != raw {
		t.Errorf("body = %q", d.last.Body)
	}
}

func TestHandler_EscapedPathForwarded(t *testing.T) {
	d := &recordingDispatcher{}
	serve(NewHandler(d, 0), newRequest("GET", "/matrix-factorization/a%2Fb", "", nil))

	if d.last.Path != "/matrix-factorization/a%2Fb" {
		t.Errorf("path = %q", d.last.Path)
	}
}

func TestHandler_WritesEnvelope(t *testing.T) {
	d := &recordingDispatcher{env: router.Envelope{Status: http.StatusNotFound, Kind: router.JSON, Body: []byte(`{"a":1}`)}}
	rr := serve(NewHandler(d, 0), newRequest("GET", "/", "", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if cl := rr.Header().Get("Content-Length"); cl != "7" {
		t.Errorf("content length = %q", cl)
	}
	if rr.Body.String() != `{"a":1}` {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestDeclaredLength(t *testing.T) {
	tests := map[string]int64{
		"":     0,
		"12":   12,
		" 7 ":  7,
		"-3":   0,
		"1e3":  0,
		"zero": 0,
	}
	for in, want := range tests {
		if got := declaredLength(in); got != want {
			t.Errorf("declaredLength(%q) = %d, want %d", in, got, want)
		}
	}
}

func assertResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, body string) {
	t.Helper()
	if rr.Code != status {
		t.Errorf("status = %d, want %d", rr.Code, status)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	if rr.Body.String() != body {
		t.Errorf("body = %q, want %q", rr.Body.String(), body)
	}
}
