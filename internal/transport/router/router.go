// Package router maps (method, path, body) onto model and word-vector operations.
// It never touches the network; the transport adapter writes the returned Envelope.
package router

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeld/internal/domain"
	"github.com/kailas-cloud/modeld/internal/domain/payload"
	"github.com/kailas-cloud/modeld/internal/logger"
)

const (
	resourceModels   = "matrix-factorization"
	resourceWord2Vec = "word2vec"
	actionEvaluate   = "evaluate"
)

// Response messages.
const (
	msgCreateFailed   = "Error creating model"
	msgUpdateFailed   = "Error updating model"
	msgDeleteFailed   = "Error deleting model"
	msgEvaluateFailed = "Error evaluating model"
	msgNoModelName    = "No model name provided"
	msgInvalidName    = "Invalid model name"
	msgLoaded         = "Loaded model"
	msgLoadFailed     = "Error loading model"
	msgFreed          = "Model freed"
	msgFreeFailed     = "Error freeing model"
	msgNotLoaded      = "Model not loaded"
	msgEmptyQuery     = "Empty or unfilterable input"
	msgCenterFailed   = "Error computing center"
	msgNothingToEval  = "No ratings matched the model"
	msgEncodeFailed   = "Error encoding response"
)

// Router dispatches requests. Safe for concurrent use.
type Router struct {
	models ModelService
	words  WordService
	parser PayloadParser
}

// New creates a router.
func New(models ModelService, words WordService, parser PayloadParser) *Router {
	return &Router{models: models, words: words, parser: parser}
}

// Dispatch routes a request and returns the response to send.
func (rt *Router) Dispatch(ctx context.Context, req Request) Envelope {
	segs := splitPath(req.Path)
	if len(segs) == 0 || segs[0] == "" {
		return rt.root(ctx, req)
	}
	switch strings.ToLower(segs[0]) {
	case resourceModels:
		return rt.model(ctx, req, segs[1:])
	case resourceWord2Vec:
		return rt.word2vec(ctx, req)
	}
	return text(http.StatusNotFound, "Unknown resource: "+req.Path)
}

// Resource returns a low-cardinality label for the path, for metrics.
func Resource(path string) string {
	segs := splitPath(path)
	if len(segs) == 0 || segs[0] == "" {
		return "/"
	}
	switch strings.ToLower(segs[0]) {
	case resourceModels:
		switch {
		case len(segs) < 2:
			return "/" + resourceModels
		case len(segs) > 2 && strings.EqualFold(segs[2], actionEvaluate):
			return "/" + resourceModels + "/{name}/" + actionEvaluate
		default:
			return "/" + resourceModels + "/{name}"
		}
	case resourceWord2Vec:
		return "/" + resourceWord2Vec
	}
	return "unknown"
}

// splitPath splits the escaped path on '/' and unescapes each segment, so an
// encoded slash stays inside its segment. The leading empty segment is dropped.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}
	for i, p := range parts {
		if u, err := url.PathUnescape(p); err == nil {
			parts[i] = u
		}
	}
	return parts
}

func methodNotAllowed(method string) Envelope {
	return text(http.StatusMethodNotAllowed, "Method "+method+" not supported for this path")
}

func (rt *Router) root(ctx context.Context, req Request) Envelope {
	if req.Method != http.MethodPost {
		return methodNotAllowed(req.Method)
	}
	tr, err := rt.parser.TrainingRequest(req.Body)
	if err != nil {
		return validationFailure(err)
	}
	name, err := rt.models.Create(ctx, tr)
	if err != nil {
		logFailure(ctx, "Model creation failed", err)
		return text(http.StatusInternalServerError, msgCreateFailed)
	}
	logger.FromContext(ctx).Info("Model created", zap.String("model", name), zap.Int("ratings", tr.Ratings.Len()))
	return text(http.StatusOK, name)
}

func (rt *Router) model(ctx context.Context, req Request, segs []string) Envelope {
	if len(segs) < 1 {
		return text(http.StatusBadRequest, msgNoModelName)
	}
	name := segs[0]
	ctx = logger.WithFields(ctx, zap.String("model", name))
	if len(segs) > 1 && strings.EqualFold(segs[1], actionEvaluate) {
		return rt.evaluate(ctx, req, name)
	}

	switch req.Method {
	case http.MethodGet:
		return rt.getModel(ctx, name)
	case http.MethodPost:
		return rt.updateModel(ctx, name, req.Body)
	case http.MethodDelete:
		return rt.deleteModel(ctx, name)
	}
	return methodNotAllowed(req.Method)
}

func (rt *Router) getModel(ctx context.Context, name string) Envelope {
	tables, err := rt.models.Get(ctx, name)
	switch {
	case err == nil:
		return jsonEnvelope(tables)
	case errors.Is(err, domain.ErrInvalidName):
		return text(http.StatusBadRequest, msgInvalidName)
	default:
		if !errors.Is(err, domain.ErrNotFound) {
			logFailure(ctx, "Model load failed", err)
		}
		return notFound(name)
	}
}

func (rt *Router) updateModel(ctx context.Context, name string, body []byte) Envelope {
	tr, err := rt.parser.TrainingRequest(body)
	if err != nil {
		return validationFailure(err)
	}
	tables, err := rt.models.Update(ctx, name, tr)
	switch {
	case err == nil:
		return jsonEnvelope(tables)
	case errors.Is(err, domain.ErrInvalidName):
		return text(http.StatusBadRequest, msgInvalidName)
	default:
		logFailure(ctx, "Model update failed", err)
		return text(http.StatusInternalServerError, msgUpdateFailed)
	}
}

func (rt *Router) deleteModel(ctx context.Context, name string) Envelope {
	err := rt.models.Delete(ctx, name)
	switch {
	case err == nil:
		return text(http.StatusOK, "Model "+name+" deleted")
	case errors.Is(err, domain.ErrInvalidName):
		return text(http.StatusBadRequest, msgInvalidName)
	default:
		logFailure(ctx, "Model deletion failed", err)
		return text(http.StatusInternalServerError, msgDeleteFailed)
	}
}

func (rt *Router) evaluate(ctx context.Context, req Request, name string) Envelope {
	if req.Method != http.MethodPost {
		return methodNotAllowed(req.Method)
	}
	ratings, err := rt.parser.Ratings(req.Body)
	if err != nil {
		return validationFailure(err)
	}
	ev, err := rt.models.Evaluate(ctx, name, ratings)
	switch {
	case err == nil:
		return jsonEnvelope(ev)
	case errors.Is(err, domain.ErrInvalidName):
		return text(http.StatusBadRequest, msgInvalidName)
	case errors.Is(err, domain.ErrNotFound):
		return notFound(name)
	case errors.Is(err, domain.ErrNothingToEvaluate):
		return text(http.StatusBadRequest, msgNothingToEval)
	default:
		logFailure(ctx, "Model evaluation failed", err)
		return text(http.StatusInternalServerError, msgEvaluateFailed)
	}
}

func (rt *Router) word2vec(ctx context.Context, req Request) Envelope {
	switch req.Method {
	case http.MethodGet:
		if err := rt.words.Load(ctx); err != nil {
			logFailure(ctx, "Word vector load failed", err)
			return text(http.StatusInternalServerError, msgLoadFailed)
		}
		return text(http.StatusOK, msgLoaded)
	case http.MethodPost:
		return rt.center(ctx, req.Body)
	case http.MethodDelete:
		if err := rt.words.Free(ctx); err != nil {
			logFailure(ctx, "Word vector free failed", err)
			return text(http.StatusInternalServerError, msgFreeFailed)
		}
		return text(http.StatusOK, msgFreed)
	}
	return methodNotAllowed(req.Method)
}

func (rt *Router) center(ctx context.Context, body []byte) Envelope {
	query, err := rt.parser.WordQuery(body)
	if err != nil {
		return validationFailure(err)
	}
	vec, err := rt.words.Center(ctx, query)
	switch {
	case err == nil:
		return jsonEnvelope(vec)
	case errors.Is(err, domain.ErrModelNotLoaded):
		return text(http.StatusServiceUnavailable, msgNotLoaded)
	case errors.Is(err, domain.ErrEmptyQuery):
		return text(http.StatusBadRequest, msgEmptyQuery)
	default:
		logFailure(ctx, "Center computation failed", err)
		return text(http.StatusInternalServerError, msgCenterFailed)
	}
}

func notFound(name string) Envelope {
	return text(http.StatusNotFound, `Model "`+name+`" not found`)
}

// validationFailure maps a parser error to 400 with its human-readable detail.
func validationFailure(err error) Envelope {
	var ve *payload.ValidationError
	if errors.As(err, &ve) {
		return text(http.StatusBadRequest, ve.Error())
	}
	return text(http.StatusBadRequest, "Invalid json")
}

func logFailure(ctx context.Context, msg string, err error) {
	logger.FromContext(ctx).Error(msg, zap.Error(err))
}
