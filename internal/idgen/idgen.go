package idgen

import "github.com/google/uuid"

// NewFunc produces the next identifier. Tests override it to make request
// ids predictable.
var NewFunc = func() string { return uuid.NewString() }

// New returns a fresh identifier used to correlate an approval request with
// the decision that resolves it.
func New() string { return NewFunc() }
