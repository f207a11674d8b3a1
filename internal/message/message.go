// Package message defines the JSON documents exchanged by the conversion worker.
package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"imgconv/format"
)

var (
	// ErrMissingID happens when a request carries no id.
	ErrMissingID = errors.New("request has no id")

	// ErrMissingSource happens when a request does not locate its source object.
	ErrMissingSource = errors.New("request has no source location")
)

// Location is an object in a bucket.
type Location struct {
	Bucket string `json:"bucket"`
	Object string `json:"object"`
}

// Request asks for the conversion of the source object to Format.
type Request struct {
	ID     string        `json:"id"`
	Source Location      `json:"source"`
	Format format.Format `json:"format"`
}

// Result is published for every request, successful or not. Converted is
// empty and Error is set when the conversion failed.
type Result struct {
	ID        string        `json:"id"`
	Source    Location      `json:"source"`
	Converted *Location     `json:"converted,omitempty"`
	Format    format.Format `json:"format"`
	Error     string        `json:"error,omitempty"`
}

// DecodeRequest parses and validates a request document.
func DecodeRequest(b []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("malformed request: %w", err)
	}
	if r.ID == "" {
		return nil, ErrMissingID
	}
	if r.Source.Bucket == "" || r.Source.Object == "" {
		return nil, ErrMissingSource
	}
	return &r, nil
}

// Encode
func (r *Result) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Failed builds the result reporting err for req.
func Failed(req *Request, err error) *Result {
	return &Result{
		ID:     req.ID,
		Source: req.Source,
		Format: req.Format,
		Error:  err.Error(),
	}
}
