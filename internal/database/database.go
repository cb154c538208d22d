package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"leadmatch/server/internal/models"
)

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) GetDB() *sql.DB {
	return d.db
}

// InsertProperty stores a newly ingested listing.
func (d *Database) InsertProperty(p *models.Property) error {
	_, err := d.db.Exec(`
		INSERT INTO properties
		(id, agency_id, address, city, price, type, rooms, seller_phone,
		 has_elevator, has_parking, has_balcony, has_safe_room, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID,
		p.AgencyID,
		p.Address,
		p.City,
		p.Price,
		string(p.Type),
		p.Rooms,
		nullString(p.SellerPhone),
		p.HasElevator,
		p.HasParking,
		p.HasBalcony,
		p.HasSafeRoom,
		p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert property: %w", err)
	}
	return nil
}

// GetPropertyByID returns a single property, or nil when it does not exist.
func (d *Database) GetPropertyByID(id string) (*models.Property, error) {
	row := d.db.QueryRow(`
		SELECT id, agency_id, address, city, price, type, rooms, seller_phone,
		       has_elevator, has_parking, has_balcony, has_safe_room, created_at
		FROM properties
		WHERE id = ?
	`, id)

	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetRecentProperties returns an agency's properties created on or
// after the cutoff, newest first. This feeds the dedup check and the
// rematch sweep.
func (d *Database) GetRecentProperties(agencyID string, since time.Time) ([]models.Property, error) {
	rows, err := d.db.Query(`
		SELECT id, agency_id, address, city, price, type, rooms, seller_phone,
		       has_elevator, has_parking, has_balcony, has_safe_room, created_at
		FROM properties
		WHERE agency_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, agencyID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectProperties(rows)
}

// GetPropertiesCreatedSince returns properties across all agencies
// created on or after the cutoff. Used by the scheduled rematch sweep.
func (d *Database) GetPropertiesCreatedSince(since time.Time) ([]models.Property, error) {
	rows, err := d.db.Query(`
		SELECT id, agency_id, address, city, price, type, rooms, seller_phone,
		       has_elevator, has_parking, has_balcony, has_safe_room, created_at
		FROM properties
		WHERE created_at >= ?
		ORDER BY created_at DESC
	`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectProperties(rows)
}

// InsertLead stores a new lead together with its requirements.
func (d *Database) InsertLead(l *models.Lead) error {
	req := l.Requirements
	var updatedAt interface{}
	if l.UpdatedAt != nil {
		updatedAt = l.UpdatedAt.UTC().Format(time.RFC3339)
	}

	_, err := d.db.Exec(`
		INSERT INTO leads
		(id, agency_id, assigned_agent_id, name, phone, email, status,
		 desired_cities, property_types, max_budget, min_rooms, max_rooms,
		 must_have_elevator, must_have_parking, must_have_balcony, must_have_safe_room,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID,
		l.AgencyID,
		nullString(l.AssignedAgentID),
		l.Name,
		l.Phone,
		nullString(l.Email),
		l.Status,
		strings.Join(req.DesiredCities, ","),
		joinPropertyTypes(req.PropertyTypes),
		req.MaxBudget,
		req.MinRooms,
		req.MaxRooms,
		req.MustHaveElevator,
		req.MustHaveParking,
		req.MustHaveBalcony,
		req.MustHaveSafeRoom,
		l.CreatedAt.UTC().Format(time.RFC3339),
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

// TouchLead updates a lead's status and bumps its activity timestamp.
func (d *Database) TouchLead(id, status string, now time.Time) error {
	result, err := d.db.Exec(`
		UPDATE leads SET status = ?, updated_at = ? WHERE id = ?
	`, status, now.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("lead not found: %s", id)
	}
	return nil
}

// GetLeadsByAgency returns every lead registered to an agency. The
// matching engine decides which of them are still active.
func (d *Database) GetLeadsByAgency(agencyID string) ([]models.Lead, error) {
	rows, err := d.db.Query(`
		SELECT id, agency_id, assigned_agent_id, name, phone, email, status,
		       desired_cities, property_types, max_budget, min_rooms, max_rooms,
		       must_have_elevator, must_have_parking, must_have_balcony, must_have_safe_room,
		       created_at, updated_at
		FROM leads
		WHERE agency_id = ?
	`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var l models.Lead
		var assignedAgentID, email, desiredCities, propertyTypes sql.NullString
		var createdAt, updatedAt sql.NullString
		var maxBudget, minRooms, maxRooms sql.NullFloat64

		err := rows.Scan(
			&l.ID,
			&l.AgencyID,
			&assignedAgentID,
			&l.Name,
			&l.Phone,
			&email,
			&l.Status,
			&desiredCities,
			&propertyTypes,
			&maxBudget,
			&minRooms,
			&maxRooms,
			&l.Requirements.MustHaveElevator,
			&l.Requirements.MustHaveParking,
			&l.Requirements.MustHaveBalcony,
			&l.Requirements.MustHaveSafeRoom,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, err
		}

		if assignedAgentID.Valid {
			l.AssignedAgentID = assignedAgentID.String
		}
		if email.Valid {
			l.Email = email.String
		}
		if desiredCities.Valid && desiredCities.String != "" {
			l.Requirements.DesiredCities = strings.Split(desiredCities.String, ",")
		}
		if propertyTypes.Valid && propertyTypes.String != "" {
			l.Requirements.PropertyTypes = splitPropertyTypes(propertyTypes.String)
		}
		if maxBudget.Valid {
			v := maxBudget.Float64
			l.Requirements.MaxBudget = &v
		}
		if minRooms.Valid {
			v := minRooms.Float64
			l.Requirements.MinRooms = &v
		}
		if maxRooms.Valid {
			v := maxRooms.Float64
			l.Requirements.MaxRooms = &v
		}

		if createdAt.Valid && createdAt.String != "" {
			if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
				l.CreatedAt = t
			}
		}
		if updatedAt.Valid && updatedAt.String != "" {
			if t, err := time.Parse(time.RFC3339, updatedAt.String); err == nil {
				l.UpdatedAt = &t
			}
		}

		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// GetRecentMatches returns an agency's newest persisted match
// notifications.
func (d *Database) GetRecentMatches(agencyID string, limit int) ([]models.MatchNotification, error) {
	rows, err := d.db.Query(`
		SELECT id, agency_id, lead_id, property_id, match_score, requires_verification, created_at
		FROM match_notifications
		WHERE agency_id = ?
		ORDER BY created_at DESC, match_score DESC
		LIMIT ?
	`, agencyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.MatchNotification
	for rows.Next() {
		var n models.MatchNotification
		var verification sql.NullString
		var createdAt sql.NullString

		err := rows.Scan(
			&n.ID,
			&n.AgencyID,
			&n.LeadID,
			&n.PropertyID,
			&n.MatchScore,
			&verification,
			&createdAt,
		)
		if err != nil {
			return nil, err
		}

		if verification.Valid {
			n.RequiresVerification = verification.String
		}
		if createdAt.Valid && createdAt.String != "" {
			if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
				n.CreatedAt = t
			}
		}

		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// GetTelegramConfig returns the stored bot configuration, or nil when
// none has been saved yet.
func (d *Database) GetTelegramConfig() (*models.TelegramConfig, error) {
	var config models.TelegramConfig
	var createdAt, updatedAt sql.NullString

	err := d.db.QueryRow(`
		SELECT id, is_enabled, bot_token, chat_id, created_at, updated_at
		FROM telegram_config
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&config.ID, &config.IsEnabled, &config.BotToken, &config.ChatID, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query telegram config: %w", err)
	}

	if createdAt.Valid && createdAt.String != "" {
		if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
			config.CreatedAt = t
		}
	}
	if updatedAt.Valid && updatedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, updatedAt.String); err == nil {
			config.UpdatedAt = t
		}
	}

	return &config, nil
}

// UpdateTelegramConfig replaces the stored bot configuration.
func (d *Database) UpdateTelegramConfig(request *models.TelegramConfigRequest) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM telegram_config"); err != nil {
		return fmt.Errorf("failed to clear telegram config: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(`
		INSERT INTO telegram_config (is_enabled, bot_token, chat_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, request.IsEnabled, request.BotToken, request.ChatID, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert telegram config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(row rowScanner) (*models.Property, error) {
	var p models.Property
	var propertyType string
	var sellerPhone sql.NullString
	var rooms sql.NullFloat64
	var hasElevator, hasParking, hasBalcony, hasSafeRoom sql.NullBool
	var createdAt sql.NullString

	err := row.Scan(
		&p.ID,
		&p.AgencyID,
		&p.Address,
		&p.City,
		&p.Price,
		&propertyType,
		&rooms,
		&sellerPhone,
		&hasElevator,
		&hasParking,
		&hasBalcony,
		&hasSafeRoom,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.Type = models.PropertyType(propertyType)
	if sellerPhone.Valid {
		p.SellerPhone = sellerPhone.String
	}
	if rooms.Valid {
		v := rooms.Float64
		p.Rooms = &v
	}
	if hasElevator.Valid {
		v := hasElevator.Bool
		p.HasElevator = &v
	}
	if hasParking.Valid {
		v := hasParking.Bool
		p.HasParking = &v
	}
	if hasBalcony.Valid {
		v := hasBalcony.Bool
		p.HasBalcony = &v
	}
	if hasSafeRoom.Valid {
		v := hasSafeRoom.Bool
		p.HasSafeRoom = &v
	}
	if createdAt.Valid && createdAt.String != "" {
		if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
			p.CreatedAt = t
		}
	}

	return &p, nil
}

func collectProperties(rows *sql.Rows) ([]models.Property, error) {
	var properties []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, *p)
	}
	return properties, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func joinPropertyTypes(types []models.PropertyType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

func splitPropertyTypes(s string) []models.PropertyType {
	parts := strings.Split(s, ",")
	types := make([]models.PropertyType, len(parts))
	for i, p := range parts {
		types[i] = models.PropertyType(p)
	}
	return types
}
