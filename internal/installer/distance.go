package installer

import (
	"math"

	"github.com/sells-group/solar-cli/internal/model"
)

// WGS-84 ellipsoid.
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
	wgs84B = wgs84A * (1 - wgs84F)

	meanEarthRadiusKM = 6371.0088

	vincentyMaxIterations = 200
	vincentyTolerance     = 1e-12
)

// Distance returns the geodesic distance between a and b in kilometres using
// the Vincenty inverse formula, falling back to haversine when the iteration
// does not converge (nearly antipodal points).
func Distance(a, b model.Coordinates) float64 {
	if km, ok := vincenty(a, b); ok {
		return km
	}
	return haversine(a, b)
}

func vincenty(p1, p2 model.Coordinates) (float64, bool) {
	l := radians(p2.Lng - p1.Lng)
	u1 := math.Atan((1 - wgs84F) * math.Tan(radians(p1.Lat)))
	u2 := math.Atan((1 - wgs84F) * math.Tan(radians(p2.Lat)))
	sinU1, cosU1 := math.Sincos(u1)
	sinU2, cosU2 := math.Sincos(u2)

	lambda := l
	for range vincentyMaxIterations {
		sinLambda, cosLambda := math.Sincos(lambda)
		sinSigma := math.Hypot(cosU2*sinLambda, cosU1*sinU2-sinU1*cosU2*cosLambda)
		if sinSigma == 0 {
			return 0, true
		}
		cosSigma := sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma := math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha := 1 - sinAlpha*sinAlpha

		// Equatorial lines have cosSqAlpha == 0.
		cos2SigmaM := 0.0
		if cosSqAlpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		}

		c := wgs84F / 16 * cosSqAlpha * (4 + wgs84F*(4-3*cosSqAlpha))
		prev := lambda
		lambda = l + (1-c)*wgs84F*sinAlpha*
			(sigma+c*sinSigma*(cos2SigmaM+c*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))

		if math.Abs(lambda-prev) < vincentyTolerance {
			uSq := cosSqAlpha * (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
			bigA := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
			bigB := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
			deltaSigma := bigB * sinSigma * (cos2SigmaM + bigB/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
				bigB/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))
			return wgs84B * bigA * (sigma - deltaSigma) / 1000, true
		}
	}
	return 0, false
}

func haversine(p1, p2 model.Coordinates) float64 {
	lat1, lat2 := radians(p1.Lat), radians(p2.Lat)
	dLat := radians(p2.Lat - p1.Lat)
	dLng := radians(p2.Lng - p1.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * meanEarthRadiusKM * math.Asin(math.Sqrt(math.Min(1, h)))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
