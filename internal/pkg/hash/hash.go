package hash

// Hash abstracts a one-way hashing scheme.
type Hash interface {
	// Hash returns the hashed representation of str.
	Hash(str string) ([]byte, error)
	// Verify reports whether str matches the stored hash.
	Verify(hashed, str string) bool
}
