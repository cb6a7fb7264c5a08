package model

import "time"

// Decision is the outcome of an admission-control evaluation.
// GrantedKW never exceeds the requested amount and is zero when Approved is false.
type Decision struct {
	Approved    bool     `json:"approved"`
	RequestedKW float64  `json:"requested_kw"`
	GrantedKW   float64  `json:"granted_kw"`
	Reason      string   `json:"reason,omitempty"`
	Rule        string   `json:"rule"`
	Warnings    []string `json:"warnings,omitempty"`
	Actions     []string `json:"actions,omitempty"`
	IsPeak      bool     `json:"is_peak"`
}

// DispatchClaim is an external request to draw (positive) or inject
// (negative) power from the hub over [Start, End).
type DispatchClaim struct {
	ID          string    `json:"id" validate:"required"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required,gtfield=Start"`
	RequestedKW float64   `json:"requested_kw" validate:"ne=0"`
	Source      string    `json:"source,omitempty"`
}

// Window returns the claim's time window.
func (c DispatchClaim) Window() Window { return Window{Start: c.Start, End: c.End} }

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
