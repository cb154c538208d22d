package telegram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"leadmatch/server/internal/models"
)

type Service struct {
	logger  *logrus.Logger
	client  *http.Client
	mu      sync.RWMutex
	config  *models.TelegramConfig
	filters *models.TelegramFilters
}

func NewService(logger *logrus.Logger) *Service {
	return &Service{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *Service) UpdateConfig(config *models.TelegramConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
}

// UpdateFilters replaces the notification filters. A nil filter set
// allows every match through.
func (s *Service) UpdateFilters(filters *models.TelegramFilters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = filters
}

func (s *Service) currentConfig() *models.TelegramConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *Service) currentFilters() *models.TelegramFilters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// SendMessage sends a message to the configured Telegram chat
func (s *Service) SendMessage(message string) error {
	config := s.currentConfig()
	if config == nil || !config.IsEnabled {
		return nil
	}

	if config.BotToken == "" {
		return errors.New("Telegram bot token is not configured")
	}

	if config.ChatID == "" {
		return errors.New("Telegram chat ID is not configured")
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", config.BotToken)
	payload := map[string]interface{}{
		"chat_id":    config.ChatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %v", err)
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token - please check your token from @BotFather")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		case http.StatusNotFound:
			return errors.New("bot not found - please check your token from @BotFather")
		default:
			return fmt.Errorf("Telegram API error (status %d): %s", resp.StatusCode, string(body))
		}
	}

	return nil
}

// NotifyMatches sends a notification summarizing the leads matched to
// a newly ingested property. Matches arrive pre-sorted by score.
func (s *Service) NotifyMatches(property *models.Property, matches []models.MatchResult) error {
	config := s.currentConfig()
	if config == nil || !config.IsEnabled {
		return nil
	}

	filters := s.currentFilters()
	allowed := matches[:0:0]
	for i := range matches {
		if filters.IsMatchAllowed(property, &matches[i]) {
			allowed = append(allowed, matches[i])
		}
	}
	if len(allowed) == 0 {
		return nil
	}

	return s.SendMessage(FormatMatchMessage(property, allowed))
}

// FormatMatchMessage renders the HTML notification body for a
// property's matches.
func FormatMatchMessage(property *models.Property, matches []models.MatchResult) string {
	var b strings.Builder

	title := "<b>New Property Matched!</b>"
	if len(matches) > 1 {
		title = fmt.Sprintf("<b>New Property Matched %d Leads!</b>", len(matches))
	}

	rooms := "N/A"
	if property.Rooms != nil {
		rooms = fmt.Sprintf("%g", *property.Rooms)
	}

	fmt.Fprintf(&b,
		"%s\n\n"+
			"🏠 %s\n"+
			"📍 %s\n"+
			"💰 %.0f (%s)\n"+
			"🚪 Rooms: %s\n",
		title,
		property.Address,
		property.City,
		property.Price,
		property.Type,
		rooms,
	)

	for _, match := range matches {
		fmt.Fprintf(&b, "\n👤 %s (score %d)", match.LeadName, match.MatchScore)
		if match.LeadPhone != "" {
			fmt.Fprintf(&b, "\n📞 %s", match.LeadPhone)
		}
		if len(match.RequiresVerification) > 0 {
			fmt.Fprintf(&b, "\n⚠️ Verify: %s", strings.Join(match.RequiresVerification, ", "))
		}
	}

	return b.String()
}
