package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string for use as a job identifier. ULIDs from
// ulid.Make are monotonic within a process, so an ID is never handed out twice.
func NewID() string {
	return ulid.Make().String()
}
