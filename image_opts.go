package peres

import "log/slog"

// Option configures an Image.
type Option func(*Image)

// WithLogger sets the logger for load, decode and save events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(im *Image) {
		im.logger = logger
	}
}

// WithRegistry sets the codec registry used to decode and encode payloads
// (default: [DefaultRegistry]).
func WithRegistry(r *Registry) Option {
	return func(im *Image) {
		im.registry = r
	}
}

// WithMaxEntries limits the number of entries accepted when loading.
// Set limit to 0 to disable the limit.
func WithMaxEntries(limit int) Option {
	return func(im *Image) {
		im.maxEntries = limit
	}
}
