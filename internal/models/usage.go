package models

// Usage is the per-user, per-month aggregate. Month is formatted "2006-01".
type Usage struct {
	UserID        string  `json:"user_id" db:"user_id"`
	Month         string  `json:"month" db:"month"`
	UsedCredits   float64 `json:"used_credits" db:"used_credits"`
	TotalMessages int     `json:"total_messages" db:"total_messages"`
	TotalDocs     int     `json:"total_docs" db:"total_docs"`
	TotalReports  int     `json:"total_reports" db:"total_reports"`
}
