package tiles

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrInvalidLevel   = errors.New("invalid pyramid level")
	ErrInvalidTile    = errors.New("tile index out of range")
	ErrInvalidRange   = errors.New("invalid frame range")
	ErrClosed         = errors.New("scheduler closed")
	errShortRead      = errors.New("source returned fewer frames than requested")
)

// AggregationError reports a failure of a channel's source while computing a
// tile. The tile is marked StatusError until it is invalidated or re-enters the
// visible set.
type AggregationError struct {
	Key Key
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate %s: %v", e.Key, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}
