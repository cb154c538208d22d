package models

import "time"

// PropertyType distinguishes sale listings from rentals.
type PropertyType string

const (
	PropertyTypeSale PropertyType = "sale"
	PropertyTypeRent PropertyType = "rent"
)

// Property is a listing ingested on behalf of an agency. The amenity
// flags are tri-state: nil means the listing did not say either way,
// which scores differently from an explicit false.
type Property struct {
	ID          string       `json:"id"`
	AgencyID    string       `json:"agency_id"`
	Address     string       `json:"address"`
	City        string       `json:"city"`
	Price       float64      `json:"price"`
	Type        PropertyType `json:"type"`
	Rooms       *float64     `json:"rooms"` // half-rooms are a valid listing unit
	SellerPhone string       `json:"seller_phone"`
	HasElevator *bool        `json:"has_elevator"`
	HasParking  *bool        `json:"has_parking"`
	HasBalcony  *bool        `json:"has_balcony"`
	HasSafeRoom *bool        `json:"has_safe_room"`
	CreatedAt   time.Time    `json:"created_at"`
}
