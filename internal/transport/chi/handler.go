// Package chi adapts the model router to net/http with chi middleware.
package chi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/kailas-cloud/modeld/internal/logger"
	"github.com/kailas-cloud/modeld/internal/transport/router"
)

const (
	defaultCharset = "utf-8"

	msgBodyFailed   = "Error getting request body"
	msgBodyTooLarge = "Request body too large"
)

var errBodyTooLarge = errors.New("declared body exceeds limit")

// Dispatcher turns a transport-neutral request into a response envelope.
type Dispatcher interface {
	Dispatch(ctx context.Context, req router.Request) router.Envelope
}

// Handler reads the request body, dispatches it and writes the envelope.
type Handler struct {
	dispatcher Dispatcher
	maxBody    int64
}

// NewHandler creates a Handler. maxBodyBytes <= 0 disables the size limit.
func NewHandler(d Dispatcher, maxBodyBytes int64) *Handler {
	return &Handler{dispatcher: d, maxBody: maxBodyBytes}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Method == http.MethodPost {
		b, err := h.readBody(r)
		if err != nil {
			status, msg := http.StatusBadRequest, msgBodyFailed
			if errors.Is(err, errBodyTooLarge) {
				status, msg = http.StatusRequestEntityTooLarge, msgBodyTooLarge
			}
			logger.FromContext(r.Context()).Warn("Request body rejected", zap.Error(err))
			writeEnvelope(w, router.Envelope{Status: status, Kind: router.Text, Body: []byte(msg)})
			return
		}
		body = b
	}

	env := h.dispatcher.Dispatch(r.Context(), router.Request{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Body:   body,
	})
	writeEnvelope(w, env)
}

// readBody reads exactly the declared Content-Length and decodes it to UTF-8
// using the charset named by Content-Encoding.
func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	n := declaredLength(r.Header.Get("Content-Length"))
	if h.maxBody > 0 && n > h.maxBody {
		return nil, fmt.Errorf("%d > %d bytes: %w", n, h.maxBody, errBodyTooLarge)
	}

	charset := strings.TrimSpace(r.Header.Get("Content-Encoding"))
	if charset == "" {
		charset = defaultCharset
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", charset, err)
	}

	raw := make([]byte, n)
	if _, err := io.ReadFull(r.Body, raw); err != nil {
		return nil, fmt.Errorf("read %d bytes: %w", n, err)
	}

	name, _ := htmlindex.Name(enc)
	if name == defaultCharset {
		// The UTF-8 decoder substitutes U+FFFD instead of failing.
		if !utf8.Valid(raw) {
			return nil, errors.New("body is not valid utf-8")
		}
		return raw, nil
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return decoded, nil
}

// declaredLength parses Content-Length; missing, malformed or negative values read nothing.
func declaredLength(v string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeEnvelope(w http.ResponseWriter, env router.Envelope) {
	w.Header().Set("Content-Type", env.Kind.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(env.Body)))
	w.WriteHeader(env.Status)
	_, _ = w.Write(env.Body)
}
