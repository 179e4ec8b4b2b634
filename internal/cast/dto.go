package cast

// CreateCastRequest represents the request to register a new cast
type CreateCastRequest struct {
	Nickname   string `json:"nickname" validate:"required,min=1,max=50"`
	Age        int    `json:"age" validate:"required,min=18,max=99"`
	HourlyRate int    `json:"hourly_rate" validate:"required,min=1"`
}

// ListFilter narrows a cast listing to active casts within an age band
type ListFilter struct {
	ActiveOnly bool
	MinAge     *int
	MaxAge     *int
}

// CastResponse represents the response for a cast
type CastResponse struct {
	ID         int64  `json:"id"`
	Nickname   string `json:"nickname"`
	Age        int    `json:"age"`
	HourlyRate int    `json:"hourly_rate"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at"`
}

// ToResponse converts a Cast model to a CastResponse DTO
func (c *Cast) ToResponse() *CastResponse {
	return &CastResponse{
		ID:         c.ID,
		Nickname:   c.Nickname,
		Age:        c.Age,
		HourlyRate: c.HourlyRate,
		IsActive:   c.IsActive,
		CreatedAt:  c.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
