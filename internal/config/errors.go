package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoStartURL is returned when a crawl has no start URL.
	ErrNoStartURL = errors.New("no start URL: set crawl.start_url or pass --start-url")

	// ErrInvalidTimeout is returned when a browser or extraction timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRestarts is returned when the stale restart bound is negative.
	ErrInvalidRestarts = errors.New("invalid max restarts: must be non-negative")

	// ErrMissingPassword is returned when a username is configured without a password.
	ErrMissingPassword = errors.New("login username set without a password: set login.password or WIKICRAWL_PASSWORD")

	// ErrInvalidChunking is returned when the chunk size is not positive or
	// the overlap does not fit inside a chunk.
	ErrInvalidChunking = errors.New("invalid chunking: size must be positive and overlap smaller than size")

	// ErrInvalidDimension is returned when the embedding dimension is not positive.
	ErrInvalidDimension = errors.New("invalid embedding dimension: must be positive")

	// ErrNoEmbeddingModel is returned when indexing without an embedding model.
	ErrNoEmbeddingModel = errors.New("no embedding model configured")
)
