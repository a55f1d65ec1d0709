package domain

import "errors"

var (
	// ErrSchema signals that a required input column is missing.
	ErrSchema = errors.New("required column missing")
	// ErrParse signals a row field that fails to parse to its expected type.
	ErrParse = errors.New("malformed row field")
	// ErrEmbeddingProvider signals an embedding service failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrGenerationProvider signals a generative model service failure.
	ErrGenerationProvider = errors.New("generation provider error")
	// ErrIndexIO signals that the persistent similarity index cannot be opened or written.
	ErrIndexIO = errors.New("index storage error")
)
