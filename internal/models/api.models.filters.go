package models

// PageQuery is decoded from list endpoint query strings
type PageQuery struct {
	Offset int `schema:"offset"`
	Limit  int `schema:"limit"`
}

// Normalize clamps pagination values to the accepted range
func (q *PageQuery) Normalize() {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 50 // Default limit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// UsageQuery carries one day of household consumption in litres
type UsageQuery struct {
	CurrentDaily float64 `json:"current_daily" schema:"current_daily"`
	AverageDaily float64 `json:"average_daily" schema:"average_daily"`
}
