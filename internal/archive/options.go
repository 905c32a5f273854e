package archive

import (
	"log/slog"
	"time"
)

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithComment sets the comment of a new archive. Ignored by Open; use
// SetComment to change the comment of an existing archive.
func WithComment(comment string) Option {
	return func(a *Archive) {
		a.comment = comment
	}
}

// WithSignature sets the signature of a new archive (default:
// vdfs.Signature). Ignored by Open.
func WithSignature(signature string) Option {
	return func(a *Archive) {
		if signature != "" {
			a.signature = signature
		}
	}
}

// WithClock sets the time source used for the creation time of new archives.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		if now != nil {
			a.now = now
		}
	}
}
