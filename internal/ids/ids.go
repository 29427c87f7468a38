// Package ids generates the identifiers tellerd hands out: transaction ids
// staged by prepare tools and correlation ids attached to dispatches.
package ids

import (
	"github.com/google/uuid"
	"github.com/rs/xid"
)

// Transaction returns a UUIDv7 transaction id. The millisecond timestamp plus
// 74 random bits makes collisions effectively impossible within a process
// lifetime while keeping ids time-ordered in logs.
func Transaction() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Correlation returns a short sortable correlation id for one dispatch.
func Correlation() string {
	return xid.New().String()
}
