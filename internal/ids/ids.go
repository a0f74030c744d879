package ids

import "github.com/segmentio/ksuid"

// New returns a new K-sortable unique id. Used for every entity the
// service persists so created-at ordering falls out of the id itself.
func New() string {
	return ksuid.New().String()
}
