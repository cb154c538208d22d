package matching

import (
	"math"
	"sort"
	"strings"
	"time"

	"leadmatch/server/internal/models"
)

// Default time windows. Both are overridable through config.
const (
	DefaultDedupWindow     = 14 * 24 * time.Hour
	DefaultStaleLeadMonths = 6
)

// Criterion weights. scorePossible only grows for criteria the lead
// actually expressed a preference on.
const (
	cityWeight    = 25
	typeWeight    = 10
	priceWeight   = 30
	roomsWeight   = 20
	amenityWeight = 4

	budgetMargin   = 0.07
	roomsTolerance = 0.5
	baselineScore  = 50
)

// Statuses that permanently close a lead. Compared case-insensitively;
// any other status keeps the lead open.
var closedStatuses = map[string]struct{}{
	models.LeadStatusLost:        {},
	models.LeadStatusWon:         {},
	models.LeadStatusNotRelevant: {},
	models.LeadStatusBought:      {},
}

// Engine matches ingested properties against an agency's lead pool.
// It is a pure computation over its inputs: no I/O, no clock reads
// (callers inject "now"), safe for concurrent use.
type Engine struct {
	dedupWindow time.Duration
	staleMonths int
}

func NewEngine(dedupWindow time.Duration, staleLeadMonths int) *Engine {
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}
	if staleLeadMonths <= 0 {
		staleLeadMonths = DefaultStaleLeadMonths
	}
	return &Engine{
		dedupWindow: dedupWindow,
		staleMonths: staleLeadMonths,
	}
}

// IsDuplicate reports whether the property is a re-ingestion of a
// listing the agency already has. A duplicate is another property in
// the same agency created within the dedup window (inclusive cutoff)
// that either shares a non-empty seller phone, or has the identical
// address and price.
func (e *Engine) IsDuplicate(property models.Property, agencyID string, existing []models.Property, now time.Time) bool {
	cutoff := now.Add(-e.dedupWindow)
	phone := strings.TrimSpace(property.SellerPhone)

	for _, other := range existing {
		if other.ID == property.ID || other.AgencyID != agencyID {
			continue
		}
		if other.CreatedAt.Before(cutoff) {
			continue
		}
		if phone != "" && strings.TrimSpace(other.SellerPhone) == phone {
			return true
		}
		if other.Address == property.Address && other.Price == property.Price {
			return true
		}
	}
	return false
}

// IsActiveLead reports whether a lead should be considered for
// matching: not in a closed status, and with activity within the
// staleness window. A lead with no timestamp at all is inactive.
func (e *Engine) IsActiveLead(lead models.Lead, now time.Time) bool {
	status := strings.ToLower(strings.TrimSpace(lead.Status))
	if _, closed := closedStatuses[status]; closed {
		return false
	}

	last := lead.LastActivity()
	if last.IsZero() {
		return false
	}
	return !last.Before(now.AddDate(0, -e.staleMonths, 0))
}

// ScoreLead evaluates one lead against one property. It returns nil
// when any hard-reject rule fires, otherwise a MatchResult with an
// integer score in [0,100]. Criteria the lead is silent on contribute
// to neither earned nor possible points; a lead with no scorable
// preferences at all gets the neutral baseline score.
func (e *Engine) ScoreLead(property models.Property, lead models.Lead) *models.MatchResult {
	req := lead.Requirements
	var points, possible int

	// City is all-or-nothing: a stated city list the property is not
	// in rejects outright.
	if cities := normalizeSet(req.DesiredCities); len(cities) > 0 {
		possible += cityWeight
		if _, ok := cities[normalize(property.City)]; !ok {
			return nil
		}
		points += cityWeight
	}

	// Sale/rent is a soft preference, it never rejects.
	if len(req.PropertyTypes) > 0 {
		possible += typeWeight
		for _, t := range req.PropertyTypes {
			if t == property.Type {
				points += typeWeight
				break
			}
		}
	}

	// Price: full credit within budget, interpolated credit inside the
	// margin zone, rejection above it.
	if req.MaxBudget != nil && *req.MaxBudget > 0 {
		possible += priceWeight
		budget := *req.MaxBudget
		effective := budget * (1 + budgetMargin)
		switch {
		case property.Price > effective:
			return nil
		case property.Price <= budget:
			points += priceWeight
		default:
			headroom := (effective - property.Price) / effective
			points += int(math.Round(priceWeight * headroom / budgetMargin))
		}
	}

	// Rooms only score when the listing states a room count. Half a
	// room either side of the stated range is tolerated at half credit.
	if (req.MinRooms != nil || req.MaxRooms != nil) && property.Rooms != nil {
		possible += roomsWeight
		rooms := *property.Rooms
		if req.MinRooms != nil && rooms < *req.MinRooms-roomsTolerance {
			return nil
		}
		if req.MaxRooms != nil && rooms > *req.MaxRooms+roomsTolerance {
			return nil
		}
		strict := true
		if req.MinRooms != nil && rooms < *req.MinRooms {
			strict = false
		}
		if req.MaxRooms != nil && rooms > *req.MaxRooms {
			strict = false
		}
		if strict {
			points += roomsWeight
		} else {
			points += roomsWeight / 2
		}
	}

	// Must-have amenities: explicit false rejects, unknown gets the
	// benefit of the doubt at half credit and is flagged for manual
	// verification.
	var verify []string
	for _, check := range []struct {
		required bool
		present  *bool
		label    string
	}{
		{req.MustHaveElevator, property.HasElevator, "hasElevator"},
		{req.MustHaveParking, property.HasParking, "hasParking"},
		{req.MustHaveBalcony, property.HasBalcony, "hasBalcony"},
		{req.MustHaveSafeRoom, property.HasSafeRoom, "hasSafeRoom"},
	} {
		if !check.required {
			continue
		}
		possible += amenityWeight
		switch {
		case check.present == nil:
			points += amenityWeight / 2
			verify = append(verify, check.label)
		case *check.present:
			points += amenityWeight
		default:
			return nil
		}
	}

	score := baselineScore
	if possible > 0 {
		score = int(math.Round(100 * float64(points) / float64(possible)))
		if score > 100 {
			score = 100
		}
	}

	result := newMatchResult(lead, score, verify)
	return &result
}

// FindMatches runs the full pipeline for one property: dedup check,
// active-lead filter, per-lead scoring, then a sort by score
// descending. Equal scores order by lead ID ascending so the output
// does not depend on the order the store returned leads in. A
// duplicate property yields an empty result with no leads evaluated.
func (e *Engine) FindMatches(property models.Property, agencyID string, leads []models.Lead, existing []models.Property, now time.Time) []models.MatchResult {
	if e.IsDuplicate(property, agencyID, existing, now) {
		return []models.MatchResult{}
	}

	results := []models.MatchResult{}
	for _, lead := range leads {
		if !e.IsActiveLead(lead, now) {
			continue
		}
		if res := e.ScoreLead(property, lead); res != nil {
			results = append(results, *res)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].MatchScore != results[j].MatchScore {
			return results[i].MatchScore > results[j].MatchScore
		}
		return results[i].LeadID < results[j].LeadID
	})
	return results
}

// newMatchResult copies the lead's display fields through, defaulting
// blanks to safe placeholders here rather than inside the scoring
// rules.
func newMatchResult(lead models.Lead, score int, verify []string) models.MatchResult {
	name := strings.TrimSpace(lead.Name)
	if name == "" {
		name = "Unknown"
	}
	if verify == nil {
		verify = []string{}
	}
	return models.MatchResult{
		LeadID:               lead.ID,
		LeadName:             name,
		LeadPhone:            lead.Phone,
		LeadEmail:            lead.Email,
		AgencyID:             lead.AgencyID,
		AssignedAgentID:      lead.AssignedAgentID,
		MatchScore:           score,
		RequiresVerification: verify,
		Requirements:         lead.Requirements,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if n := normalize(v); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
