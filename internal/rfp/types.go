package rfp

import (
	"errors"
	"time"

	"rfphub.org/internal/auth"
)

// Status tracks an RFP through its pipeline.
type Status string

const (
	StatusDraft Status = "draft"
	StatusOpen  Status = "open"
	StatusWon   Status = "won"
	StatusLost  Status = "lost"
)

// ValidStatus reports whether s is a known pipeline status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusOpen, StatusWon, StatusLost:
		return true
	}
	return false
}

// RFP is one request-for-proposal record. Value is in minor units
// (cents); no floats.
type RFP struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Client     string    `json:"client,omitempty"`
	Department auth.Role `json:"department"`
	Status     Status    `json:"status"`
	Value      int64     `json:"value"`
	Currency   string    `json:"currency"`
	OwnerID    string    `json:"owner_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Department auth.Role
	Status     Status
	Limit      int
}

// Update carries a partial update. Nil fields are left untouched.
type Update struct {
	Title      *string
	Client     *string
	Department *auth.Role
	Status     *Status
	Value      *int64
	Currency   *string
}

// Summary is the aggregate behind the dashboard.
type Summary struct {
	TotalCount    int                `json:"total_count"`
	PipelineValue map[string]int64   `json:"pipeline_value"` // currency -> minor units
	ByStatus      map[Status]int     `json:"by_status"`
	ByDepartment  map[auth.Role]int  `json:"by_department"`
	Monthly       []MonthlyBucket    `json:"monthly"`
	AsOf          time.Time          `json:"as_of"`
}

// MonthlyBucket is one point in the last-12-months series.
type MonthlyBucket struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
	Value int64  `json:"value"`
}

var (
	ErrNotFound      = errors.New("rfp: not found")
	ErrInvalidInput  = errors.New("rfp: invalid input")
	ErrInvalidStatus = errors.New("rfp: invalid status")
)
