package model

import "math"

// Coordinates is a WGS-84 latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are finite and inside the WGS-84 range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Surface holds the physical attributes of a single roof surface.
type Surface struct {
	ID              string       `json:"id,omitempty"`
	BuildingID      string       `json:"building_id,omitempty"`
	Source          string       `json:"source"`
	AreaM2          float64      `json:"area_m2"`
	AzimuthDegrees  float64      `json:"azimuth_degrees"` // bearing, 0 = north, clockwise
	PitchDegrees    float64      `json:"pitch_degrees"`
	MeanRadiation   float64      `json:"mean_radiation,omitempty"` // kWh/m² per year
	MonthlyYieldKWh []float64    `json:"monthly_yield_kwh,omitempty"`
	Center          *Coordinates `json:"center,omitempty"`
}

// RoofCandidate is one roof surface returned by a roof data provider. A
// candidate either reports a precomputed electric yield or exposes the
// sunshine distribution the yield is derived from.
type RoofCandidate interface {
	Attributes() Surface
	PrecomputedYield() (float64, bool)
	SunshineQuantiles() []float64
}

// YieldSurface is a candidate whose provider precomputes the annual electric yield.
type YieldSurface struct {
	Surface
	ElectricYieldKWh float64
}

// Attributes implements RoofCandidate.
func (s YieldSurface) Attributes() Surface { return s.Surface }

// PrecomputedYield implements RoofCandidate.
func (s YieldSurface) PrecomputedYield() (float64, bool) { return s.ElectricYieldKWh, true }

// SunshineQuantiles implements RoofCandidate.
func (s YieldSurface) SunshineQuantiles() []float64 { return nil }

// QuantileSurface is a candidate described by an annual sunshine-hours distribution.
type QuantileSurface struct {
	Surface
	Quantiles []float64
}

// Attributes implements RoofCandidate.
func (s QuantileSurface) Attributes() Surface { return s.Surface }

// PrecomputedYield implements RoofCandidate.
func (s QuantileSurface) PrecomputedYield() (float64, bool) { return 0, false }

// SunshineQuantiles implements RoofCandidate.
func (s QuantileSurface) SunshineQuantiles() []float64 { return s.Quantiles }

// BestSurface is the most productive surface found for a location.
type BestSurface struct {
	Surface          Surface     `json:"surface"`
	Orientation      string      `json:"orientation"`
	ElectricYieldKWh float64     `json:"electric_yield_kwh"`
	NumSurfaces      int         `json:"num_surfaces"`
	Coordinates      Coordinates `json:"coordinates"`
}

// SolarReport is the financial and environmental projection for a sized system.
type SolarReport struct {
	SystemSizeKW         float64  `json:"system_size_kw"`
	MaxSystemSizeKW      float64  `json:"max_system_size_kw"`
	MaxPanelCount        int      `json:"max_panel_count"`
	AdjustedEfficiency   float64  `json:"adjusted_efficiency"`
	Orientation          string   `json:"orientation"`
	SurfaceYieldKWh      float64  `json:"surface_yield_kwh"`
	AnnualConsumptionKWh float64  `json:"annual_consumption_kwh"`
	AnnualProductionKWh  float64  `json:"annual_production_kwh"`
	AnnualSavings        float64  `json:"annual_savings"`
	TotalCost            float64  `json:"total_cost"`
	PaybackYears         *float64 `json:"payback_years"` // nil when savings never cover the cost
	AnnualCO2SavingsKg   float64  `json:"annual_co2_savings_kg"`
	LifespanYears        int      `json:"lifespan_years"`
}

// PaybackUnbounded reports whether the system never pays for itself.
func (r SolarReport) PaybackUnbounded() bool {
	return r.PaybackYears == nil
}
