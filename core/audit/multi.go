package audit

import (
	"context"
	"errors"
)

// MultiSink fans records out to several sinks. Every sink receives the record
// even when an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) Append(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Query delegates to the first queryable sink.
func (m *MultiSink) Query(ctx context.Context, q Query) ([]Record, error) {
	for _, s := range m.Sinks {
		if st, ok := s.(Store); ok {
			return st.Query(ctx, q)
		}
	}
	return nil, errors.New("no queryable audit sink configured")
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
