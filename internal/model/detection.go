package model

import (
	"image"
	"time"
)

// Box is one detector hit in frame-pixel coordinates.
type Box struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class,omitempty"`
}

// Rect truncates the box to integer pixels for drawing.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// Sample is the detector output for one processed frame.
type Sample struct {
	Timestamp time.Time
	Boxes     []Box
}

func (s Sample) Count() int {
	return len(s.Boxes)
}

// Record is one entry of the session log. Label is "MM/DD HH:MM, <count>".
type Record struct {
	Label     string    `json:"label"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// Notification is what notifiers deliver when a new record is logged.
type Notification struct {
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Label    string    `json:"label"`
	Count    int       `json:"count"`
	Snapshot string    `json:"snapshot,omitempty"`
	Time     time.Time `json:"time"`
}
