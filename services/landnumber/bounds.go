package landnumber

import (
	"github.com/golang/geo/s2"
)

// taiwanBounds is the area queries are accepted for, points on the edge
// are rejected.
var taiwanBounds = s2.EmptyRect().
	AddPoint(s2.LatLngFromDegrees(21.8969, 120.035141)).
	AddPoint(s2.LatLngFromDegrees(25.298401, 122.035141))

func inTaiwan(longitude, latitude float64) bool {
	ll := s2.LatLngFromDegrees(latitude, longitude)
	return ll.IsValid() &&
		taiwanBounds.Lat.InteriorContains(ll.Lat.Radians()) &&
		taiwanBounds.Lng.InteriorContains(ll.Lng.Radians())
}
