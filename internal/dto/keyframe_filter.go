// KeyFrameFilters describe user-provided filters to narrow the key-frame list.
package dto

import "time"

type KeyFrameFilters struct {
	RunID      string
	ForcedOnly bool
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}
