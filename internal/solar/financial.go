package solar

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/model"
)

// Financial assumptions.
const (
	PanelFootprintM2     = 1.7
	CostPerKW            = 1500.0
	LifespanYears        = 25
	CO2KgPerKWh          = 0.4
	ElectricityRate      = 0.15 // currency per kWh
	DegradationPerYear   = 0.005
	HoursPerYear         = 8760.0
	OrientationDerate    = 0.95
	PitchDerate          = 0.97
	IdealPitchMinDegrees = 20.0
	IdealPitchMaxDegrees = 40.0
)

// Input holds the surface attributes and household bill a report is built from.
type Input struct {
	AreaM2           float64 `json:"area_m2"`
	AzimuthDegrees   float64 `json:"azimuth_degrees"`
	PitchDegrees     float64 `json:"pitch_degrees"`
	ElectricYieldKWh float64 `json:"electric_yield_kwh"`
	MonthlyBill      float64 `json:"monthly_bill"`
}

// InputFromSurface builds an Input from a selected surface.
func InputFromSurface(best model.BestSurface, monthlyBill float64) Input {
	return Input{
		AreaM2:           best.Surface.AreaM2,
		AzimuthDegrees:   best.Surface.AzimuthDegrees,
		PitchDegrees:     best.Surface.PitchDegrees,
		ElectricYieldKWh: best.ElectricYieldKWh,
		MonthlyBill:      monthlyBill,
	}
}

// Validate rejects non-finite and negative inputs.
func (in Input) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"area", in.AreaM2},
		{"azimuth", in.AzimuthDegrees},
		{"pitch", in.PitchDegrees},
		{"electric yield", in.ElectricYieldKWh},
		{"monthly bill", in.MonthlyBill},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return eris.Errorf("solar: %s must be a finite number", f.name)
		}
	}
	if in.AreaM2 < 0 {
		return eris.New("solar: area must not be negative")
	}
	if in.PitchDegrees < 0 {
		return eris.New("solar: pitch must not be negative")
	}
	if in.MonthlyBill < 0 {
		return eris.New("solar: monthly bill must not be negative")
	}
	return nil
}

// AdjustedEfficiency derates the panel efficiency for a non-south orientation
// and for a pitch outside the ideal band.
func AdjustedEfficiency(azimuthDegrees, pitchDegrees float64) float64 {
	eff := PanelEfficiency
	if Cardinal(azimuthDegrees) != "S" {
		eff *= OrientationDerate
	}
	if pitchDegrees < IdealPitchMinDegrees || pitchDegrees > IdealPitchMaxDegrees {
		eff *= PitchDerate
	}
	return eff
}

// MaxSystemSizeKW is the largest system, in kW, whole panels on the area allow.
func MaxSystemSizeKW(areaM2 float64) (kw float64, panels int) {
	if areaM2 <= 0 {
		return 0, 0
	}
	n := math.Floor(areaM2 / PanelFootprintM2)
	return n * PanelFootprintM2 * PanelEfficiency, int(n)
}

// EstimateReport sizes a system for the surface and household and projects
// its production, cost, payback and CO₂ savings. The computation is pure.
func EstimateReport(in Input) (model.SolarReport, error) {
	if err := in.Validate(); err != nil {
		return model.SolarReport{}, err
	}

	adjEff := AdjustedEfficiency(in.AzimuthDegrees, in.PitchDegrees)
	maxSize, panels := MaxSystemSizeKW(in.AreaM2)

	annualConsumption := in.MonthlyBill * 12 / ElectricityRate
	impliedSize := annualConsumption / (HoursPerYear * adjEff)
	size := math.Min(maxSize, impliedSize)
	if size < 0 {
		size = 0
	}

	degradation := 1 - DegradationPerYear*LifespanYears/2
	production := size * HoursPerYear * adjEff * degradation
	savings := production * ElectricityRate
	totalCost := size * CostPerKW

	report := model.SolarReport{
		SystemSizeKW:         size,
		MaxSystemSizeKW:      maxSize,
		MaxPanelCount:        panels,
		AdjustedEfficiency:   adjEff,
		Orientation:          Cardinal(in.AzimuthDegrees),
		SurfaceYieldKWh:      in.ElectricYieldKWh,
		AnnualConsumptionKWh: annualConsumption,
		AnnualProductionKWh:  production,
		AnnualSavings:        savings,
		TotalCost:            totalCost,
		AnnualCO2SavingsKg:   production * CO2KgPerKWh,
		LifespanYears:        LifespanYears,
	}
	if savings > 0 {
		payback := totalCost / savings
		report.PaybackYears = &payback
	}
	return report, nil
}
