// Package payload turns untrusted request bodies into strict domain values.
// Decoding is all-or-nothing: a payload either yields a complete value or a *ValidationError.
package payload

import (
	"bytes"
	"errors"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/kailas-cloud/modeld/internal/domain"
)

const (
	fieldRatings    = "ratings"
	fieldRank       = "rank"
	fieldIterations = "iterations"
	fieldLambda     = "lambda"
)

// requiredFields lists training keys in the order they are reported when missing.
var requiredFields = []string{fieldRatings, fieldRank, fieldIterations, fieldLambda}

// Limits caps hyperparameters. Zero means unlimited.
type Limits struct {
	MaxRank       int
	MaxIterations int
}

// hyperparams carries the static range rules for training parameters.
type hyperparams struct {
	Rank       int     `json:"rank" validate:"gt=0"`
	Iterations int     `json:"iterations" validate:"gt=0"`
	Lambda     float64 `json:"lambda" validate:"gte=0"`
}

// Parser validates training and word payloads.
type Parser struct {
	limits   Limits
	validate *validator.Validate
}

// New creates a Parser with the given hyperparameter caps.
func New(limits Limits) *Parser {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("json")
	})
	return &Parser{limits: limits, validate: v}
}

var defaultParser = New(Limits{})

// ParseTrainingRequest validates a training payload without hyperparameter caps.
func ParseTrainingRequest(raw []byte) (domain.TrainingRequest, error) {
	return defaultParser.TrainingRequest(raw)
}

// ParseWordQuery validates a word list payload.
func ParseWordQuery(raw []byte) (domain.WordQuery, error) {
	return defaultParser.WordQuery(raw)
}

// ParseRatings validates a bare ratings payload.
func ParseRatings(raw []byte) (domain.RatingMatrix, error) {
	return defaultParser.Ratings(raw)
}

// TrainingRequest decodes {"ratings", "rank", "iterations", "lambda"}.
// Checks run in order: well-formed object, required keys, type coercion, value ranges.
func (p *Parser) TrainingRequest(raw []byte) (domain.TrainingRequest, error) {
	v, err := decode(raw)
	if err != nil {
		return domain.TrainingRequest{}, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return domain.TrainingRequest{}, malformed("expected an object")
	}

	var missing []string
	for _, f := range requiredFields {
		if _, ok := obj[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return domain.TrainingRequest{}, &ValidationError{Kind: MissingFields, Fields: missing}
	}

	ratings, err := coerceRatings(obj[fieldRatings])
	if err != nil {
		return domain.TrainingRequest{}, err
	}
	rank, err := coerceInt(fieldRank, obj[fieldRank])
	if err != nil {
		return domain.TrainingRequest{}, err
	}
	iterations, err := coerceInt(fieldIterations, obj[fieldIterations])
	if err != nil {
		return domain.TrainingRequest{}, err
	}
	lambda, err := coerceFloat(fieldLambda, obj[fieldLambda])
	if err != nil {
		return domain.TrainingRequest{}, err
	}

	hp := hyperparams{Rank: rank, Iterations: iterations, Lambda: lambda}
	if err := p.checkRanges(hp); err != nil {
		return domain.TrainingRequest{}, err
	}

	return domain.TrainingRequest{
		Ratings:    ratings,
		Rank:       rank,
		Iterations: iterations,
		Lambda:     lambda,
	}, nil
}

// Ratings decodes a bare ratings object. An empty matrix is rejected.
func (p *Parser) Ratings(raw []byte) (domain.RatingMatrix, error) {
	v, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(map[string]any); !ok {
		return nil, malformed("expected an object")
	}
	ratings, err := coerceRatings(v)
	if err != nil {
		return nil, err
	}
	if ratings.Len() == 0 {
		return nil, invalid(fieldRatings, "ratings must not be empty")
	}
	return ratings, nil
}

// WordQuery decodes a JSON array of strings.
func (p *Parser) WordQuery(raw []byte) (domain.WordQuery, error) {
	v, err := decode(raw)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, malformed("expected an array of strings")
	}
	words := make(domain.WordQuery, len(arr))
	for i, el := range arr {
		s, ok := el.(string)
		if !ok {
			return nil, malformed("expected an array of strings")
		}
		words[i] = s
	}
	return words, nil
}

func (p *Parser) checkRanges(hp hyperparams) error {
	if err := p.validate.Struct(hp); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return invalid(fe.Field(), "%s %s", fe.Field(), rangeMessage(fe.Tag()))
		}
		return invalid("", "%v", err)
	}
	if p.limits.MaxRank > 0 && hp.Rank > p.limits.MaxRank {
		return invalid(fieldRank, "rank must not exceed %d", p.limits.MaxRank)
	}
	if p.limits.MaxIterations > 0 && hp.Iterations > p.limits.MaxIterations {
		return invalid(fieldIterations, "iterations must not exceed %d", p.limits.MaxIterations)
	}
	return nil
}

func rangeMessage(tag string) string {
	switch tag {
	case "gt":
		return "must be positive"
	case "gte":
		return "must not be negative"
	default:
		return "is out of range"
	}
}

// decode parses exactly one JSON document with numbers kept as json.Number.
func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, malformed("")
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, malformed("trailing data after document")
	}
	return v, nil
}

func coerceRatings(v any) (domain.RatingMatrix, error) {
	ratings := make(domain.RatingMatrix)
	if v == nil {
		return ratings, nil
	}
	users, ok := v.(map[string]any)
	if !ok {
		return nil, mismatch(fieldRatings, "expected an object of user ratings")
	}
	for userKey, rawItems := range users {
		user, err := parseID(userKey)
		if err != nil {
			return nil, mismatch(fieldRatings, "user id %q is not a non-negative integer", userKey)
		}
		items, ok := rawItems.(map[string]any)
		if !ok {
			return nil, mismatch(fieldRatings, "ratings of user %q must be an object", userKey)
		}
		row := make(map[int64]float64, len(items))
		for itemKey, rawRating := range items {
			item, err := parseID(itemKey)
			if err != nil {
				return nil, mismatch(fieldRatings, "item id %q of user %q is not a non-negative integer", itemKey, userKey)
			}
			rating, ok := toFloat(rawRating)
			if !ok {
				return nil, mismatch(fieldRatings, "rating of user %q for item %q is not a finite number", userKey, itemKey)
			}
			row[item] = rating
		}
		if prev, dup := ratings[user]; dup {
			// "1" and "01" name the same user; merge rather than drop.
			for k, r := range row {
				prev[k] = r
			}
			continue
		}
		ratings[user] = row
	}
	return ratings, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err //nolint:wrapcheck // caller replaces with a ValidationError
	}
	if id < 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}

func coerceInt(field string, v any) (int, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), nil
		}
		f, err := t.Float64()
		if err == nil && f == math.Trunc(f) && math.Abs(f) <= math.MaxInt32 {
			return int(f), nil
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, nil
		}
	}
	return 0, mismatch(field, "%s must be an integer", field)
}

func coerceFloat(field string, v any) (float64, error) {
	if f, ok := toFloat(v); ok {
		return f, nil
	}
	return 0, mismatch(field, "%s must be a number", field)
}

func toFloat(v any) (float64, bool) {
	var f float64
	var err error
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
