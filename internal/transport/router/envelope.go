package router

import (
	"net/http"

	"github.com/goccy/go-json"
)

// Kind is the media type of an envelope body.
type Kind int

const (
	// Text is a plain UTF-8 message.
	Text Kind = iota
	// JSON is a serialized JSON document.
	JSON
)

// ContentType returns the HTTP Content-Type for the kind.
func (k Kind) ContentType() string {
	if k == JSON {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

// Request is a transport-neutral request. Path is the escaped request path.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

// Envelope is a transport-neutral response.
type Envelope struct {
	Status int
	Kind   Kind
	Body   []byte
}

func text(status int, msg string) Envelope {
	return Envelope{Status: status, Kind: Text, Body: []byte(msg)}
}

func jsonEnvelope(v any) Envelope {
	data, err := json.Marshal(v)
	if err != nil {
		return text(http.StatusInternalServerError, msgEncodeFailed)
	}
	return Envelope{Status: http.StatusOK, Kind: JSON, Body: data}
}
