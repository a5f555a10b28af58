package models

import "time"

// ViewerSession is the persisted viewport of a named viewer session.
type ViewerSession struct {
	UpdatedAt      time.Time
	Name           string
	VisibleStart   float64
	VisibleEnd     float64
	Playhead       int
	SelectionStart int
	SelectionEnd   int
	HasSelection   bool
}
