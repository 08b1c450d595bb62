package patient

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotArray is returned when the upstream body is valid JSON but not an
// array of records.
var ErrNotArray = errors.New("upstream body is not an array")

// Source supplies the initial collection of records.
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
}

// JSONGetter is the subset of upstream.Client used by HTTPSource.
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, out interface{}) error
}

// HTTPSource reads records from an endpoint returning a JSON array.
type HTTPSource struct {
	client JSONGetter
	url    string
}

func NewHTTPSource(client JSONGetter, url string) *HTTPSource {
	return &HTTPSource{client: client, url: url}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]Record, error) {
	var records []Record
	if err := s.client.GetJSON(ctx, s.url, &records); err != nil {
		return nil, fmt.Errorf("fetch patients: %w", err)
	}
	if records == nil {
		return nil, fmt.Errorf("fetch patients: %w", ErrNotArray)
	}
	return records, nil
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]Record, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]Record, error) {
	return f(ctx)
}
