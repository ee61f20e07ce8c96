package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string used as the user partition key. ULIDs sort
// by creation time, so the users table reads back in signup order.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
