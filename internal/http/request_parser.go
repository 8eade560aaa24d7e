// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request data:
// JSON bodies, path IDs, month keys and date filters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budgetly/internal/core"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

const dateLayout = "2006-01-02"

// DecodeJSON reads one JSON object from the request body into dst.
// Decoding failures are reported as validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var ve *core.ValidationError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &ve):
			return ve
		case errors.Is(err, io.EOF):
			return core.NewValidationError("", "request body is required")
		case errors.As(err, &maxErr):
			return core.NewValidationError("", "request body too large")
		case errors.As(err, &typeErr):
			return core.NewValidationError(typeErr.Field, "has the wrong type")
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return core.NewValidationError("", "malformed JSON")
		default:
			return core.NewValidationError("", fmt.Sprintf("invalid request body: %v", err))
		}
	}
	return nil
}

// ParseIDParam reads a positive integer path value.
func ParseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// ParseMonthParam returns the "month" query value, or the month of now in
// loc when it is absent.
func ParseMonthParam(query url.Values, now time.Time, loc *time.Location) (core.MonthKey, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return core.MonthOf(now, loc), nil
	}
	return core.ParseMonthKey(v)
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates in loc.
// With endOfDay a plain date resolves to its last instant so that it works
// as an inclusive upper bound.
func ParseDate(field, s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, core.NewValidationError(field, "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

// ParseExpenseFilter reads the category, from and to query parameters.
func ParseExpenseFilter(query url.Values, loc *time.Location) (core.ExpenseFilter, error) {
	var f core.ExpenseFilter
	if v := strings.TrimSpace(query.Get("category")); v != "" {
		c, err := core.ParseCategory(v)
		if err != nil {
			return f, err
		}
		f.Category = c
	}
	if v := query.Get("from"); v != "" {
		t, err := ParseDate("from", v, loc, false)
		if err != nil {
			return f, err
		}
		f.From = t
	}
	if v := query.Get("to"); v != "" {
		t, err := ParseDate("to", v, loc, true)
		if err != nil {
			return f, err
		}
		f.To = t
	}
	return f, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
