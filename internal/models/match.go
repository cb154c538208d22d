package models

import (
	"strings"
	"time"
)

// MatchResult is the outcome of scoring one lead against one property.
// Lead display fields are copied through so consumers never have to
// join back to the lead store to render a notification.
type MatchResult struct {
	LeadID               string           `json:"lead_id"`
	LeadName             string           `json:"lead_name"`
	LeadPhone            string           `json:"lead_phone"`
	LeadEmail            string           `json:"lead_email"`
	AgencyID             string           `json:"agency_id"`
	AssignedAgentID      string           `json:"assigned_agent_id"`
	MatchScore           int              `json:"match_score"`
	RequiresVerification []string         `json:"requires_verification"`
	Requirements         LeadRequirements `json:"requirements"`
}

// MatchNotification is the persisted record of a lead/property match.
// The unique (lead_id, property_id) pair keeps repeated matchmaking
// runs from double-notifying the same pair.
type MatchNotification struct {
	ID                   string    `json:"id" gorm:"primaryKey"`
	AgencyID             string    `json:"agency_id" gorm:"index"`
	LeadID               string    `json:"lead_id" gorm:"uniqueIndex:idx_match_pair"`
	PropertyID           string    `json:"property_id" gorm:"uniqueIndex:idx_match_pair"`
	MatchScore           int       `json:"match_score"`
	RequiresVerification string    `json:"requires_verification"` // comma-joined amenity labels
	CreatedAt            time.Time `json:"created_at"`
}

func (MatchNotification) TableName() string {
	return "match_notifications"
}

// VerificationLabels splits the stored comma-joined labels back into a
// slice, returning nil when nothing needs verification.
func (n *MatchNotification) VerificationLabels() []string {
	if n.RequiresVerification == "" {
		return nil
	}
	return strings.Split(n.RequiresVerification, ",")
}
