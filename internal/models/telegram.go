package models

import "time"

// TelegramConfig stores the bot credentials and basic settings
type TelegramConfig struct {
	ID        int64     `json:"id"`
	IsEnabled bool      `json:"is_enabled"`
	BotToken  string    `json:"bot_token"`
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TelegramConfigRequest is used when updating the configuration
type TelegramConfigRequest struct {
	IsEnabled bool   `json:"is_enabled"`
	BotToken  string `json:"bot_token"`
	ChatID    string `json:"chat_id"`
}

// TelegramFilters stores the notification filter settings
type TelegramFilters struct {
	MinScore *int     `json:"min_score"`
	Cities   []string `json:"cities"`
}

// IsMatchAllowed checks if a match notification passes the filter criteria
func (f *TelegramFilters) IsMatchAllowed(property *Property, match *MatchResult) bool {
	if f == nil {
		return true // No filters means allow all
	}

	if f.MinScore != nil && match.MatchScore < *f.MinScore {
		return false
	}

	if len(f.Cities) > 0 {
		allowed := false
		for _, city := range f.Cities {
			if city == property.City {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	return true
}
