package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"leadmatch/server/internal/database"
	"leadmatch/server/internal/matching"
	"leadmatch/server/internal/queue"
	"leadmatch/server/internal/telegram"
)

func SetupRoutes(router *gin.Engine, db *database.Database, engine *matching.Engine, propertyQueue *queue.PropertyQueue, telegramService *telegram.Service, dedupWindow time.Duration) {
	handler := NewHandler(db, engine, propertyQueue, telegramService, dedupWindow, nil)

	api := router.Group("/api")
	{
		api.POST("/properties", handler.CreateProperty)
		api.GET("/properties/:id/matches", handler.GetPropertyMatches)
		api.POST("/leads", handler.CreateLead)
		api.GET("/leads", handler.GetLeads)
		api.PATCH("/leads/:id/status", handler.UpdateLeadStatus)
		api.GET("/matches/recent", handler.GetRecentMatches)
		api.GET("/telegram/config", handler.GetTelegramConfig)
		api.POST("/telegram/config", handler.UpdateTelegramConfig)
		api.POST("/telegram/test", handler.TestTelegramConfig)
	}
}
