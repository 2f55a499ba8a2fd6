package tfl

import "math"

//simpleLatLngDistance calculates the approximate distance between two pairs of coordinates with simplistic
//calculation of longitudinal distance based on latitudes.
//adequately accurate for coordinates inside one city, will not work where longitude rolls over from -179.9 to 179.9
//returns distance in METERS
func simpleLatLngDistance(lat1, lon1, lat2, lon2 float64) float64 {
	//take average latitude and convert to radians
	lat := lat1 + lat2
	if lat != 0 {
		lat = (lat / 2) * 0.01745329
	}

	diffLat := 111300 * (lat1 - lat2)
	// at equator one degree is 111300 meters, use average latitude to convert
	diffLon := 111300 * math.Cos(lat) * (lon1 - lon2)

	return math.Sqrt((diffLon * diffLon) + (diffLat * diffLat))
}

//interpolateLatLng returns the coordinate fraction (0.0 to 1.0) of the way from the first coordinate to the second
func interpolateLatLng(lat1, lon1, lat2, lon2, fraction float64) (float64, float64) {
	fraction = math.Min(1, math.Max(0, fraction))
	return lat1 + (lat2-lat1)*fraction, lon1 + (lon2-lon1)*fraction
}
