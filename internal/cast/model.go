package cast

import "time"

// Cast represents a service-providing member of the platform
type Cast struct {
	ID         int64     `json:"id"`
	Nickname   string    `json:"nickname"`
	Age        int       `json:"age"`
	HourlyRate int       `json:"hourly_rate"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}
