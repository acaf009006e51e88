package bridge

import (
	"github.com/cockroachdb/errors"
)

// Error classes. Wrapped errors are marked with one of these so errors.Is
// classifies them through any amount of wrapping.
var (
	ErrConfig    = errors.New("config error")
	ErrTransient = errors.New("transient rpc error")
	ErrPermanent = errors.New("permanent rpc error")
	ErrMapping   = errors.New("mapping error")
)

// Kind names an error class for logs, metrics and exit codes.
type Kind string

const (
	KindNone      Kind = ""
	KindConfig    Kind = "config"
	KindTransient Kind = "transient"
	KindPermanent Kind = "permanent"
	KindMapping   Kind = "mapping"
	KindInternal  Kind = "internal"
)

// ConfigErrorf builds a ConfigError.
func ConfigErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfig)
}

// MappingErrorf builds a MappingError.
func MappingErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrMapping)
}

// Transient marks err as a retryable RPC failure.
func Transient(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, op), ErrTransient)
}

// Permanent marks err as a non-retryable RPC failure.
func Permanent(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, op), ErrPermanent)
}

// Classify returns the class of err.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConfig):
		return KindConfig
	case errors.Is(err, ErrMapping):
		return KindMapping
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrPermanent):
		return KindPermanent
	default:
		return KindInternal
	}
}

// Retryable reports whether the next scheduled pass may retry after err.
func Retryable(err error) bool {
	return Classify(err) == KindTransient
}
