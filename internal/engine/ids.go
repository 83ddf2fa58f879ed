package engine

import "github.com/google/uuid"

// IDGenerator names one execution of a compiled statement. The ID is logged
// with the statement text and bound arguments and returned in Result.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator is the default IDGenerator. UUIDv7 values carry their
// creation time in the leading bits, so execution IDs in merged logs sort
// by when the statement ran. It holds no state.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
