package storage

import "errors"

var (
	ErrStoreUnreachable   = errors.New("document store unreachable")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrIndexNotFound      = errors.New("search index not found")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrUnknownField       = errors.New("unknown chunk field")
)
