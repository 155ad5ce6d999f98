// Package uid provides identifier generators: snowflake numeric IDs for
// database rows, UUIDs for correlation, and object IDs for opaque tokens.
package uid

// NumberID generates int64 identifiers.
type NumberID interface {
	Generate() int64
}

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}
