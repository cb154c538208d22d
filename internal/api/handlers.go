package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"leadmatch/server/internal/database"
	"leadmatch/server/internal/matching"
	"leadmatch/server/internal/models"
	"leadmatch/server/internal/queue"
	"leadmatch/server/internal/telegram"
)

type Handler struct {
	db              *database.Database
	logger          *logrus.Logger
	engine          *matching.Engine
	queue           *queue.PropertyQueue
	telegramService *telegram.Service
	dedupWindow     time.Duration
	now             func() time.Time
}

type PropertyRequest struct {
	AgencyID    string   `json:"agency_id" binding:"required"`
	Address     string   `json:"address" binding:"required"`
	City        string   `json:"city" binding:"required"`
	Price       float64  `json:"price" binding:"required,gt=0"`
	Type        string   `json:"type" binding:"required,oneof=sale rent"`
	Rooms       *float64 `json:"rooms"`
	SellerPhone string   `json:"seller_phone"`
	HasElevator *bool    `json:"has_elevator"`
	HasParking  *bool    `json:"has_parking"`
	HasBalcony  *bool    `json:"has_balcony"`
	HasSafeRoom *bool    `json:"has_safe_room"`
}

type LeadRequest struct {
	AgencyID        string                  `json:"agency_id" binding:"required"`
	AssignedAgentID string                  `json:"assigned_agent_id"`
	Name            string                  `json:"name" binding:"required"`
	Phone           string                  `json:"phone" binding:"required"`
	Email           string                  `json:"email"`
	Status          string                  `json:"status"`
	Requirements    models.LeadRequirements `json:"requirements"`
}

func NewHandler(db *database.Database, engine *matching.Engine, propertyQueue *queue.PropertyQueue, telegramService *telegram.Service, dedupWindow time.Duration, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	if telegramService == nil {
		telegramService = telegram.NewService(logger)
	}

	// Load existing Telegram configuration
	if config, err := db.GetTelegramConfig(); err == nil && config != nil {
		telegramService.UpdateConfig(config)
	}

	return &Handler{
		db:              db,
		logger:          logger,
		engine:          engine,
		queue:           propertyQueue,
		telegramService: telegramService,
		dedupWindow:     dedupWindow,
		now:             time.Now,
	}
}

// CreateProperty ingests a new listing and enqueues it for
// matchmaking.
func (h *Handler) CreateProperty(c *gin.Context) {
	var req PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to parse property request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
		return
	}

	property := &models.Property{
		ID:          uuid.NewString(),
		AgencyID:    req.AgencyID,
		Address:     req.Address,
		City:        req.City,
		Price:       req.Price,
		Type:        models.PropertyType(req.Type),
		Rooms:       req.Rooms,
		SellerPhone: req.SellerPhone,
		HasElevator: req.HasElevator,
		HasParking:  req.HasParking,
		HasBalcony:  req.HasBalcony,
		HasSafeRoom: req.HasSafeRoom,
		CreatedAt:   h.now(),
	}

	if err := h.db.InsertProperty(property); err != nil {
		h.logger.WithError(err).Error("Failed to insert property")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create property"})
		return
	}

	// The scheduled rematch sweep picks the property up later if the
	// queue is saturated right now.
	if err := h.queue.Push(property); err != nil {
		h.logger.WithError(err).WithField("property_id", property.ID).Warn("Failed to enqueue property for matchmaking")
	}

	c.JSON(http.StatusCreated, property)
}

// CreateLead registers a new lead for an agency.
func (h *Handler) CreateLead(c *gin.Context) {
	var req LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to parse lead request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
		return
	}

	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = models.LeadStatusNew
	}

	lead := &models.Lead{
		ID:              uuid.NewString(),
		AgencyID:        req.AgencyID,
		AssignedAgentID: req.AssignedAgentID,
		Name:            req.Name,
		Phone:           req.Phone,
		Email:           req.Email,
		Status:          status,
		Requirements:    req.Requirements,
		CreatedAt:       h.now(),
	}

	if err := h.db.InsertLead(lead); err != nil {
		h.logger.WithError(err).Error("Failed to insert lead")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create lead"})
		return
	}

	c.JSON(http.StatusCreated, lead)
}

// GetLeads returns every lead registered to an agency.
func (h *Handler) GetLeads(c *gin.Context) {
	agencyID := c.Query("agency_id")
	if agencyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agency_id is required"})
		return
	}

	leads, err := h.db.GetLeadsByAgency(agencyID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get leads")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get leads"})
		return
	}

	c.JSON(http.StatusOK, leads)
}

// UpdateLeadStatus changes a lead's lifecycle status and refreshes its
// activity timestamp.
func (h *Handler) UpdateLeadStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	if err := h.db.TouchLead(c.Param("id"), req.Status, h.now()); err != nil {
		h.logger.WithError(err).Error("Failed to update lead status")
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// GetPropertyMatches runs matchmaking synchronously for one property
// and returns the ranked results without persisting anything.
func (h *Handler) GetPropertyMatches(c *gin.Context) {
	property, err := h.db.GetPropertyByID(c.Param("id"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get property")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get property"})
		return
	}
	if property == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	now := h.now()
	existing, err := h.db.GetRecentProperties(property.AgencyID, now.Add(-h.dedupWindow))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get recent properties")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get matches"})
		return
	}

	leads, err := h.db.GetLeadsByAgency(property.AgencyID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get leads")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get matches"})
		return
	}

	matches := h.engine.FindMatches(*property, property.AgencyID, leads, existing, now)
	c.JSON(http.StatusOK, matches)
}

// GetRecentMatches returns an agency's newest persisted match
// notifications.
func (h *Handler) GetRecentMatches(c *gin.Context) {
	agencyID := c.Query("agency_id")
	if agencyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agency_id is required"})
		return
	}

	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	matches, err := h.db.GetRecentMatches(agencyID, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get recent matches")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recent matches"})
		return
	}

	c.JSON(http.StatusOK, matches)
}

// GetTelegramConfig returns the current Telegram configuration
func (h *Handler) GetTelegramConfig(c *gin.Context) {
	config, err := h.db.GetTelegramConfig()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get Telegram config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get Telegram config"})
		return
	}

	if config == nil {
		c.JSON(http.StatusOK, gin.H{
			"is_enabled": false,
			"chat_id":    "",
			"bot_token":  "",
		})
		return
	}

	// Don't send the full bot token back to the client for security
	config.BotToken = maskToken(config.BotToken)
	c.JSON(http.StatusOK, config)
}

// UpdateTelegramConfig updates the Telegram configuration
func (h *Handler) UpdateTelegramConfig(c *gin.Context) {
	var request models.TelegramConfigRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.WithError(err).Error("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// Basic validation
	if len(request.BotToken) < 20 || !strings.Contains(request.BotToken, ":") {
		h.logger.Error("Invalid bot token format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bot token format. Please check your bot token from @BotFather"})
		return
	}

	if request.ChatID == "" {
		h.logger.Error("Chat ID is required")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Chat ID is required"})
		return
	}

	// Test the Telegram configuration before saving
	testService := telegram.NewService(h.logger)
	testService.UpdateConfig(&models.TelegramConfig{
		BotToken:  request.BotToken,
		ChatID:    request.ChatID,
		IsEnabled: true,
	})

	testMessage := "🔔 Test notification from LeadMatch\n\nIf you see this message, your Telegram configuration is working correctly!"
	if err := testService.SendMessage(testMessage); err != nil {
		h.logger.WithError(err).Error("Failed to send test message")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Save the configuration
	if err := h.db.UpdateTelegramConfig(&request); err != nil {
		h.logger.WithError(err).Error("Failed to update Telegram config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save configuration to database"})
		return
	}

	// Update the service configuration
	if config, err := h.db.GetTelegramConfig(); err == nil && config != nil {
		h.telegramService.UpdateConfig(config)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Telegram configuration updated successfully"})
}

// TestTelegramConfig sends a sample match notification with the stored
// configuration.
func (h *Handler) TestTelegramConfig(c *gin.Context) {
	config, err := h.db.GetTelegramConfig()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get Telegram config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get Telegram configuration"})
		return
	}

	if config == nil || !config.IsEnabled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Telegram is not configured or is disabled"})
		return
	}

	rooms := 3.0
	sampleProperty := &models.Property{
		Address: "Test Street 123",
		City:    "Tel Aviv",
		Price:   1450000,
		Type:    models.PropertyTypeSale,
		Rooms:   &rooms,
	}
	sampleMatches := []models.MatchResult{
		{
			LeadName:             "Sample Lead",
			LeadPhone:            "050-1234567",
			MatchScore:           87,
			RequiresVerification: []string{"hasParking"},
		},
	}

	testService := telegram.NewService(h.logger)
	testService.UpdateConfig(config)

	if err := testService.NotifyMatches(sampleProperty, sampleMatches); err != nil {
		h.logger.WithError(err).Error("Failed to send test notification")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Test notification sent successfully"})
}

// maskToken hides a stored bot token, keeping at most the last four
// characters visible. Tokens seeded outside the API can be arbitrarily
// short.
func maskToken(token string) string {
	if len(token) <= 4 {
		return "••••"
	}
	return "••••" + token[len(token)-4:]
}
