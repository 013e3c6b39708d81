package behavior

import "math"

// earthRadiusKm is the mean radius used for haversine distances.
const earthRadiusKm = 6371.0

// sessionSampleGapSeconds is the spacing between the two in-session
// coordinate samples used to derive instantaneous speed.
const sessionSampleGapSeconds = 30.0

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsZero reports whether the coordinate is the zero value, which the
// pipeline treats as an absent signal rather than a real point.
func (c Coordinate) IsZero() bool {
	return c.Lat == 0 && c.Lon == 0
}

// LocationContext carries the per-request location signals. It is supplied
// fresh by the caller on every call and never persisted.
type LocationContext struct {
	LastLogin      Coordinate `json:"lastLogin"`
	CurrentSession Coordinate `json:"currentSession"`
	// Prev30s and Latest30s are two coordinate samples taken 30 seconds
	// apart during the current session.
	Prev30s   Coordinate `json:"prev30s"`
	Latest30s Coordinate `json:"latest30s"`
}

// Complete reports whether every location signal is present. Distances
// computed against an absent coordinate would measure from (0,0) and could
// raise spurious travel or speed flags, so incomplete contexts are rejected
// before any tier runs.
func (lc *LocationContext) Complete() bool {
	return !lc.LastLogin.IsZero() && !lc.CurrentSession.IsZero() &&
		!lc.Prev30s.IsZero() && !lc.Latest30s.IsZero()
}

// Haversine returns the great-circle distance between two coordinates in km.
func Haversine(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dlat := (b.Lat - a.Lat) * math.Pi / 180
	dlon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// TravelDistanceKm returns the distance between the last known login
// location and the current session location.
func (lc *LocationContext) TravelDistanceKm() float64 {
	return Haversine(lc.LastLogin, lc.CurrentSession)
}

// SessionSpeedKmh derives the instantaneous speed implied by the two
// in-session samples taken 30 seconds apart.
func (lc *LocationContext) SessionSpeedKmh() float64 {
	dist := Haversine(lc.Prev30s, lc.Latest30s)
	return dist / (sessionSampleGapSeconds / 3600.0)
}
