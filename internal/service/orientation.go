package service

import (
	"strconv"

	"github.com/rs/zerolog/log"
)

// Orientation is the north arrow rotation for a map bearing.
type Orientation struct {
	Bearing   float64 `json:"bearing"`
	Rotation  float64 `json:"rotation"`
	Transform string  `json:"transform"`
}

// OrientationIndicator keeps the north arrow pointing at true north.
type OrientationIndicator struct {
	session   *Session
	elementID string
}

// NewOrientationIndicator creates an indicator for the element with the
// given id. An empty id means the page has no north arrow.
func NewOrientationIndicator(session *Session, elementID string) *OrientationIndicator {
	return &OrientationIndicator{session: session, elementID: elementID}
}

// ElementID returns the id of the north arrow element.
func (o *OrientationIndicator) ElementID() string {
	return o.elementID
}

// Selector returns the CSS selector of the north arrow element.
func (o *OrientationIndicator) Selector() string {
	return "#" + o.elementID
}

// Update records the bearing and returns the arrow rotation. Without an
// arrow element the rotation is skipped and ErrNoIndicator returned.
func (o *OrientationIndicator) Update(bearing float64) (Orientation, error) {
	o.session.SetBearing(bearing)

	if o.elementID == "" {
		log.Error().Float64("bearing", bearing).Msg("North arrow element not found")
		return Orientation{Bearing: bearing}, ErrNoIndicator
	}
	return RotationFor(bearing), nil
}

// Current returns the rotation for the session's current bearing.
func (o *OrientationIndicator) Current() (Orientation, error) {
	return o.Update(o.session.Bearing())
}

// RotationFor counter-rotates the arrow by the map bearing.
func RotationFor(bearing float64) Orientation {
	rotation := -bearing
	if rotation == 0 {
		rotation = 0 // no "-0deg"
	}
	return Orientation{
		Bearing:   bearing,
		Rotation:  rotation,
		Transform: "rotate(" + strconv.FormatFloat(rotation, 'f', -1, 64) + "deg)",
	}
}
