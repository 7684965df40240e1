package model

import "time"

// Lead is a prospective customer captured from the estimator.
type Lead struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	MonthlyBill float64   `json:"monthly_bill,omitempty"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}
