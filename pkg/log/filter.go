package log

import "time"

// Filter selects events of a capture. Zero fields match everything.
type Filter struct {
	ConnectionID string
	Direction    *Direction
	Layer        *Layer
	Category     *Category

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time

	Node *uint8

	// Index matches message events addressing the object.
	Index *uint16
}

// Match reports whether ev passes every set criterion.
func (f Filter) Match(ev Event) bool {
	switch {
	case f.ConnectionID != "" && ev.ConnectionID != f.ConnectionID,
		f.Direction != nil && ev.Direction != *f.Direction,
		f.Layer != nil && ev.Layer != *f.Layer,
		f.Category != nil && ev.Category != *f.Category,
		f.Node != nil && ev.Node != *f.Node:
		return false
	case f.TimeStart != nil && ev.Timestamp.Before(*f.TimeStart),
		f.TimeEnd != nil && !ev.Timestamp.Before(*f.TimeEnd):
		return false
	case f.Index != nil:
		return ev.Message != nil && ev.Message.Index == *f.Index
	}
	return true
}
