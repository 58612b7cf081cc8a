package models

// RankedRecord documents the usual shape of one scorer result. The API itself passes the
// scorer's JSON through untouched, so any other fields the scorer emits are returned as well.
type RankedRecord struct {
	FirstName string  `json:"First Name" example:"Jane"`
	LastName  string  `json:"Last Name" example:"Smith"`
	Company   string  `json:"Company" example:"Tech Startup"`
	Position  string  `json:"Position" example:"Marketer"`
	Score     float64 `json:"score" example:"8"`
	Reason    string  `json:"reason" example:"Runs growth marketing at an AI-first startup"`
}

// HealthResponse is returned by the liveness and readiness probes
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Message string `json:"message,omitempty" example:"Warm Ranker API is running"`
	Error   string `json:"error,omitempty"`
}
