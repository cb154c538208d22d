package database

import "fmt"

func (d *Database) RunMigrations() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS properties (
			id TEXT PRIMARY KEY,
			agency_id TEXT NOT NULL,
			address TEXT NOT NULL,
			city TEXT NOT NULL,
			price REAL NOT NULL,
			type TEXT NOT NULL,
			rooms REAL,
			seller_phone TEXT,
			has_elevator BOOLEAN,
			has_parking BOOLEAN,
			has_balcony BOOLEAN,
			has_safe_room BOOLEAN,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create properties table: %v", err)
	}

	_, err = d.db.Exec(`
		CREATE TABLE IF NOT EXISTS leads (
			id TEXT PRIMARY KEY,
			agency_id TEXT NOT NULL,
			assigned_agent_id TEXT,
			name TEXT NOT NULL,
			phone TEXT NOT NULL,
			email TEXT,
			status TEXT NOT NULL DEFAULT 'new',
			desired_cities TEXT,
			property_types TEXT,
			max_budget REAL,
			min_rooms REAL,
			max_rooms REAL,
			must_have_elevator BOOLEAN DEFAULT 0,
			must_have_parking BOOLEAN DEFAULT 0,
			must_have_balcony BOOLEAN DEFAULT 0,
			must_have_safe_room BOOLEAN DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create leads table: %v", err)
	}

	_, err = d.db.Exec(`
		CREATE TABLE IF NOT EXISTS match_notifications (
			id TEXT PRIMARY KEY,
			agency_id TEXT NOT NULL,
			lead_id TEXT NOT NULL,
			property_id TEXT NOT NULL,
			match_score INTEGER NOT NULL,
			requires_verification TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (lead_id, property_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create match_notifications table: %v", err)
	}

	_, err = d.db.Exec(`
		CREATE TABLE IF NOT EXISTS telegram_config (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			is_enabled BOOLEAN NOT NULL DEFAULT 0,
			bot_token TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create telegram_config table: %v", err)
	}

	// Dedup queries hit agency + creation time; the sweep hits creation
	// time alone.
	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_properties_agency_created
		ON properties(agency_id, created_at);
	`)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_leads_agency
		ON leads(agency_id);
	`)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_match_notifications_agency_created
		ON match_notifications(agency_id, created_at);
	`)
	if err != nil {
		return err
	}

	return nil
}
