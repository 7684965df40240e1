package model

// Installer is a solar installation company from the reference dataset.
type Installer struct {
	Name          string      `json:"name" yaml:"name"`
	Address       string      `json:"address" yaml:"address"`
	Phone         string      `json:"phone" yaml:"phone"`
	Rating        float64     `json:"rating" yaml:"rating"`
	ReviewSummary string      `json:"review_summary,omitempty" yaml:"reviews"`
	Reviews       int         `json:"reviews" yaml:"-"`
	Location      Coordinates `json:"location" yaml:"location"`
	URL           string      `json:"url" yaml:"url"`
}

// RankedInstaller is the public view of an installer returned to callers.
type RankedInstaller struct {
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Phone      string  `json:"phone"`
	Rating     float64 `json:"rating"`
	Reviews    int     `json:"reviews"`
	URL        string  `json:"url"`
	DistanceKM float64 `json:"distance_km"`
}
