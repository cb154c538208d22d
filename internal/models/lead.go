package models

import "time"

// Known lead lifecycle statuses. Status is free text, so anything
// outside this list is treated as an open lead.
const (
	LeadStatusNew         = "new"
	LeadStatusContacted   = "contacted"
	LeadStatusMeetingSet  = "meeting_set"
	LeadStatusLost        = "lost"
	LeadStatusWon         = "won"
	LeadStatusNotRelevant = "not_relevant"
	LeadStatusBought      = "bought"
)

// LeadRequirements captures what a lead is looking for. Every field is
// optional; a lead that states nothing still gets matched at a neutral
// baseline score.
type LeadRequirements struct {
	DesiredCities    []string       `json:"desired_cities"`
	PropertyTypes    []PropertyType `json:"property_types"`
	MaxBudget        *float64       `json:"max_budget"`
	MinRooms         *float64       `json:"min_rooms"`
	MaxRooms         *float64       `json:"max_rooms"`
	MustHaveElevator bool           `json:"must_have_elevator"`
	MustHaveParking  bool           `json:"must_have_parking"`
	MustHaveBalcony  bool           `json:"must_have_balcony"`
	MustHaveSafeRoom bool           `json:"must_have_safe_room"`
}

// Lead is a prospective buyer or renter registered with an agency.
type Lead struct {
	ID              string           `json:"id"`
	AgencyID        string           `json:"agency_id"`
	AssignedAgentID string           `json:"assigned_agent_id"`
	Name            string           `json:"name"`
	Phone           string           `json:"phone"`
	Email           string           `json:"email"`
	Status          string           `json:"status"`
	Requirements    LeadRequirements `json:"requirements"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       *time.Time       `json:"updated_at"`
}

// LastActivity returns the lead's most recent activity timestamp:
// UpdatedAt when present, otherwise CreatedAt. The zero time means the
// lead has no usable timestamp at all.
func (l *Lead) LastActivity() time.Time {
	if l.UpdatedAt != nil && !l.UpdatedAt.IsZero() {
		return *l.UpdatedAt
	}
	return l.CreatedAt
}
