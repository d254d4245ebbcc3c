package payload

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func mustValidationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
	return ve
}

func TestParseTrainingRequest_Success(t *testing.T) {
	body := `{"ratings": {"1": {"10": 5.0, "11": "3.5"}, "2": {"10": 1}}, "rank": 2, "iterations": "5", "lambda": 0.1}`

	req, err := ParseTrainingRequest([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Rank != 2 || req.Iterations != 5 || req.Lambda != 0.1 {
		t.Errorf("unexpected hyperparameters: %+v", req)
	}
	if req.Ratings[1][10] != 5.0 || req.Ratings[1][11] != 3.5 || req.Ratings[2][10] != 1 {
		t.Errorf("unexpected ratings: %v", req.Ratings)
	}
	if req.Ratings.Len() != 3 {
		t.Errorf("expected 3 ratings, got %d", req.Ratings.Len())
	}
}

func TestParseTrainingRequest_EmptyRatings(t *testing.T) {
	for _, ratings := range []string{`{}`, `null`} {
		t.Run(ratings, func(t *testing.T) {
			body := `{"ratings": ` + ratings + `, "rank": 1, "iterations": 1, "lambda": 0}`
			req, err := ParseTrainingRequest([]byte(body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Ratings == nil || req.Ratings.Len() != 0 {
				t.Errorf("expected empty non-nil matrix, got %v", req.Ratings)
			}
		})
	}
}

func TestParseTrainingRequest_Malformed(t *testing.T) {
	for _, body := range []string{``, `{`, `not json`, `[1,2]`, `"str"`, `{"rank": 1} trailing`} {
		_, err := ParseTrainingRequest([]byte(body))
		ve := mustValidationError(t, err)
		if ve.Kind != MalformedPayload {
			t.Errorf("body %q: expected MalformedPayload, got %s", body, ve.Kind)
		}
	}
}

func TestParseTrainingRequest_MissingFieldsExact(t *testing.T) {
	all := map[string]string{
		"ratings":    `"ratings": {}`,
		"rank":       `"rank": 1`,
		"iterations": `"iterations": 1`,
		"lambda":     `"lambda": 0.1`,
	}
	order := []string{"ratings", "rank", "iterations", "lambda"}

	// Every non-full subset of the four keys.
	for mask := 0; mask < 15; mask++ {
		var parts, wantMissing []string
		for i, k := range order {
			if mask&(1<<i) != 0 {
				parts = append(parts, all[k])
			} else {
				wantMissing = append(wantMissing, k)
			}
		}
		body := "{" + strings.Join(parts, ",") + "}"

		_, err := ParseTrainingRequest([]byte(body))
		ve := mustValidationError(t, err)
		if ve.Kind != MissingFields {
			t.Fatalf("body %s: expected MissingFields, got %s", body, ve.Kind)
		}
		if !reflect.DeepEqual(ve.Fields, wantMissing) {
			t.Errorf("body %s: missing = %v, want %v", body, ve.Fields, wantMissing)
		}
	}
}

func TestParseTrainingRequest_TypeMismatch(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"rank float", `{"ratings": {}, "rank": 2.5, "iterations": 1, "lambda": 0}`, "rank"},
		{"rank word", `{"ratings": {}, "rank": "two", "iterations": 1, "lambda": 0}`, "rank"},
		{"rank bool", `{"ratings": {}, "rank": true, "iterations": 1, "lambda": 0}`, "rank"},
		{"iterations null", `{"ratings": {}, "rank": 1, "iterations": null, "lambda": 0}`, "iterations"},
		{"lambda object", `{"ratings": {}, "rank": 1, "iterations": 1, "lambda": {}}`, "lambda"},
		{"lambda nan", `{"ratings": {}, "rank": 1, "iterations": 1, "lambda": "NaN"}`, "lambda"},
		{"ratings array", `{"ratings": [], "rank": 1, "iterations": 1, "lambda": 0}`, "ratings"},
		{"user not int", `{"ratings": {"a": {"1": 1}}, "rank": 1, "iterations": 1, "lambda": 0}`, "ratings"},
		{"negative user", `{"ratings": {"-1": {"1": 1}}, "rank": 1, "iterations": 1, "lambda": 0}`, "ratings"},
		{"item not int", `{"ratings": {"1": {"x": 1}}, "rank": 1, "iterations": 1, "lambda": 0}`, "ratings"},
		{"rating not number", `{"ratings": {"1": {"1": "high"}}, "rank": 1, "iterations": 1, "lambda": 0}`, "ratings"},
		{"user row not object", `{"ratings": {"1": 5}, "rank": 1, "iterations": 1, "lambda": 0}`, "ratings"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := ParseTrainingRequest([]byte(tc.body))
			ve := mustValidationError(t, err)
			if ve.Kind != TypeMismatch {
				t.Fatalf("expected TypeMismatch, got %s (%v)", ve.Kind, ve)
			}
			if len(ve.Fields) != 1 || ve.Fields[0] != tc.field {
				t.Errorf("expected field %q, got %v", tc.field, ve.Fields)
			}
			if req.Ratings != nil {
				t.Errorf("expected no partial ratings, got %v", req.Ratings)
			}
		})
	}
}

func TestParseTrainingRequest_InvalidValue(t *testing.T) {
	tests := []struct {
		body  string
		field string
		msg   string
	}{
		{`{"ratings": {}, "rank": 0, "iterations": 1, "lambda": 0}`, "rank", "Invalid value: rank must be positive"},
		{`{"ratings": {}, "rank": 1, "iterations": -3, "lambda": 0}`, "iterations", "Invalid value: iterations must be positive"},
		{`{"ratings": {}, "rank": 1, "iterations": 1, "lambda": -0.5}`, "lambda", "Invalid value: lambda must not be negative"},
	}
	for _, tc := range tests {
		_, err := ParseTrainingRequest([]byte(tc.body))
		ve := mustValidationError(t, err)
		if ve.Kind != InvalidValue {
			t.Fatalf("body %s: expected InvalidValue, got %s", tc.body, ve.Kind)
		}
		if ve.Fields[0] != tc.field {
			t.Errorf("expected field %q, got %v", tc.field, ve.Fields)
		}
		if ve.Error() != tc.msg {
			t.Errorf("message = %q, want %q", ve.Error(), tc.msg)
		}
	}
}

func TestParser_Limits(t *testing.T) {
	p := New(Limits{MaxRank: 10, MaxIterations: 20})

	_, err := p.TrainingRequest([]byte(`{"ratings": {}, "rank": 11, "iterations": 1, "lambda": 0}`))
	if ve := mustValidationError(t, err); ve.Kind != InvalidValue || ve.Fields[0] != "rank" {
		t.Errorf("expected rank cap violation, got %v", ve)
	}

	_, err = p.TrainingRequest([]byte(`{"ratings": {}, "rank": 10, "iterations": 21, "lambda": 0}`))
	if ve := mustValidationError(t, err); ve.Kind != InvalidValue || ve.Fields[0] != "iterations" {
		t.Errorf("expected iterations cap violation, got %v", ve)
	}

	if _, err := p.TrainingRequest([]byte(`{"ratings": {}, "rank": 10, "iterations": 20, "lambda": 0}`)); err != nil {
		t.Errorf("unexpected error at the caps: %v", err)
	}
}

func TestParseWordQuery(t *testing.T) {
	words, err := ParseWordQuery([]byte(`["the", "cat", "the"]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual([]string(words), []string{"the", "cat", "the"}) {
		t.Errorf("unexpected words: %v", words)
	}

	empty, err := ParseWordQuery([]byte(`[]`))
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty query, got %v, %v", empty, err)
	}
}

func TestParseWordQuery_Malformed(t *testing.T) {
	for _, body := range []string{``, `null`, `{"a": 1}`, `["a", 1]`, `"word"`, `[["a"]]`, `[null]`} {
		_, err := ParseWordQuery([]byte(body))
		ve := mustValidationError(t, err)
		if ve.Kind != MalformedPayload {
			t.Errorf("body %q: expected MalformedPayload, got %s", body, ve.Kind)
		}
	}
}

func TestParseRatings(t *testing.T) {
	ratings, err := ParseRatings([]byte(`{"3": {"7": 4.5}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ratings[3][7] != 4.5 {
		t.Errorf("unexpected ratings: %v", ratings)
	}

	_, err = ParseRatings([]byte(`{}`))
	if ve := mustValidationError(t, err); ve.Kind != InvalidValue {
		t.Errorf("expected InvalidValue for empty ratings, got %s", ve.Kind)
	}
}

func TestValidationError_Messages(t *testing.T) {
	tests := []struct {
		err  *ValidationError
		want string
	}{
		{&ValidationError{Kind: MalformedPayload}, "Invalid json"},
		{&ValidationError{Kind: MissingFields, Fields: []string{"rank", "lambda"}}, "Missing fields: rank, lambda"},
		{mismatch("rank", "rank must be an integer"), "Invalid data types: rank must be an integer"},
		{mismatch("ratings", "bad"), "Rating data invalid: bad"},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
}
