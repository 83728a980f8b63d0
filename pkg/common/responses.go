package common

import (
	"encoding/json"
	"net/http"
)

// Envelope wraps every JSON body the API writes
type Envelope[T any] struct {
	Success bool  `json:"success"`
	Data    T     `json:"data"`
	Meta    *Meta `json:"meta,omitempty"`
}

// Meta is set only on paged listings
type Meta struct {
	Pagination *PaginationInfo `json:"pagination"`
}

// Respond writes data in an envelope. Success follows the status class.
func Respond[T any](w http.ResponseWriter, status int, data T) {
	writeEnvelope(w, status, Envelope[T]{Success: isSuccess(status), Data: data})
}

// RespondPage writes one page of items. body builds the payload from the page so callers
// can keep their own response shape around the items.
func RespondPage[T, B any](w http.ResponseWriter, status int, items []T, params PaginationParams, body func(page []T) B) {
	page, info := Paginate(items, params)
	writeEnvelope(w, status, Envelope[B]{
		Success: isSuccess(status),
		Data:    body(page),
		Meta:    &Meta{Pagination: info},
	})
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func writeEnvelope[T any](w http.ResponseWriter, status int, env Envelope[T]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// ParseJSONBody decodes a JSON request body of at most maxBytes, rejecting unknown fields
func ParseJSONBody(r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	return decoder.Decode(v)
}
