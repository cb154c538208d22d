package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadmatch/server/internal/models"
)

func setupDB(t *testing.T) *Database {
	db, err := NewDatabase(":memory:")
	require.NoError(t, err)
	// Each sqlite :memory: connection is its own database.
	db.GetDB().SetMaxOpenConns(1)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })
	return db
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func TestPropertyRoundtrip(t *testing.T) {
	db := setupDB(t)
	createdAt := time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)

	prop := &models.Property{
		ID:          "prop-1",
		AgencyID:    "agency-1",
		Address:     "12 Herzl St",
		City:        "Tel Aviv",
		Price:       1250000,
		Type:        models.PropertyTypeSale,
		Rooms:       floatPtr(3.5),
		SellerPhone: "050-1234567",
		HasElevator: boolPtr(true),
		HasParking:  boolPtr(false),
		CreatedAt:   createdAt,
	}
	require.NoError(t, db.InsertProperty(prop))

	got, err := db.GetPropertyByID("prop-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "12 Herzl St", got.Address)
	assert.Equal(t, models.PropertyTypeSale, got.Type)
	require.NotNil(t, got.Rooms)
	assert.Equal(t, 3.5, *got.Rooms)
	require.NotNil(t, got.HasElevator)
	assert.True(t, *got.HasElevator)
	require.NotNil(t, got.HasParking)
	assert.False(t, *got.HasParking)
	// Balcony was never stated, so it must stay unknown.
	assert.Nil(t, got.HasBalcony)
	assert.True(t, got.CreatedAt.Equal(createdAt))

	missing, err := db.GetPropertyByID("prop-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetRecentProperties_WindowAndTenant(t *testing.T) {
	db := setupDB(t)
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	insert := func(id, agency string, createdAt time.Time) {
		require.NoError(t, db.InsertProperty(&models.Property{
			ID:        id,
			AgencyID:  agency,
			Address:   "addr " + id,
			City:      "Tel Aviv",
			Price:     1000000,
			Type:      models.PropertyTypeSale,
			CreatedAt: createdAt,
		}))
	}

	insert("prop-recent", "agency-1", now.AddDate(0, 0, -3))
	insert("prop-boundary", "agency-1", now.AddDate(0, 0, -14))
	insert("prop-old", "agency-1", now.AddDate(0, 0, -20))
	insert("prop-other-tenant", "agency-2", now)

	recent, err := db.GetRecentProperties("agency-1", now.AddDate(0, 0, -14))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "prop-recent", recent[0].ID)
	// The cutoff is inclusive.
	assert.Equal(t, "prop-boundary", recent[1].ID)
}

func TestLeadRoundtrip(t *testing.T) {
	db := setupDB(t)
	createdAt := time.Date(2025, time.May, 1, 8, 0, 0, 0, time.UTC)
	updatedAt := createdAt.AddDate(0, 0, 10)

	lead := &models.Lead{
		ID:              "lead-1",
		AgencyID:        "agency-1",
		AssignedAgentID: "agent-7",
		Name:            "Dana Levi",
		Phone:           "050-0000000",
		Email:           "dana@example.com",
		Status:          models.LeadStatusContacted,
		Requirements: models.LeadRequirements{
			DesiredCities:    []string{"Tel Aviv", "Ramat Gan"},
			PropertyTypes:    []models.PropertyType{models.PropertyTypeSale},
			MaxBudget:        floatPtr(1500000),
			MinRooms:         floatPtr(2.5),
			MustHaveElevator: true,
			MustHaveSafeRoom: true,
		},
		CreatedAt: createdAt,
		UpdatedAt: &updatedAt,
	}
	require.NoError(t, db.InsertLead(lead))

	// A second lead with no optional fields at all.
	require.NoError(t, db.InsertLead(&models.Lead{
		ID:        "lead-2",
		AgencyID:  "agency-1",
		Name:      "Noam",
		Phone:     "052-1111111",
		Status:    models.LeadStatusNew,
		CreatedAt: createdAt,
	}))

	leads, err := db.GetLeadsByAgency("agency-1")
	require.NoError(t, err)
	require.Len(t, leads, 2)

	var got models.Lead
	for _, l := range leads {
		if l.ID == "lead-1" {
			got = l
		}
	}
	assert.Equal(t, "agent-7", got.AssignedAgentID)
	assert.Equal(t, []string{"Tel Aviv", "Ramat Gan"}, got.Requirements.DesiredCities)
	assert.Equal(t, []models.PropertyType{models.PropertyTypeSale}, got.Requirements.PropertyTypes)
	require.NotNil(t, got.Requirements.MaxBudget)
	assert.Equal(t, 1500000.0, *got.Requirements.MaxBudget)
	require.NotNil(t, got.Requirements.MinRooms)
	assert.Equal(t, 2.5, *got.Requirements.MinRooms)
	assert.Nil(t, got.Requirements.MaxRooms)
	assert.True(t, got.Requirements.MustHaveElevator)
	assert.False(t, got.Requirements.MustHaveParking)
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.Equal(updatedAt))

	empty, err := db.GetLeadsByAgency("agency-404")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTouchLead(t *testing.T) {
	db := setupDB(t)
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.InsertLead(&models.Lead{
		ID:        "lead-1",
		AgencyID:  "agency-1",
		Name:      "Dana",
		Phone:     "050-0000000",
		Status:    models.LeadStatusNew,
		CreatedAt: now.AddDate(0, -1, 0),
	}))

	require.NoError(t, db.TouchLead("lead-1", models.LeadStatusMeetingSet, now))

	leads, err := db.GetLeadsByAgency("agency-1")
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, models.LeadStatusMeetingSet, leads[0].Status)
	require.NotNil(t, leads[0].UpdatedAt)
	assert.True(t, leads[0].UpdatedAt.Equal(now))

	err = db.TouchLead("lead-404", models.LeadStatusWon, now)
	assert.Error(t, err)
}

func TestGetRecentMatches(t *testing.T) {
	db := setupDB(t)
	base := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	insert := func(id, agency string, score int, verification string, createdAt time.Time) {
		_, err := db.GetDB().Exec(`
			INSERT INTO match_notifications
			(id, agency_id, lead_id, property_id, match_score, requires_verification, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, agency, "lead-"+id, "prop-"+id, score, verification, createdAt.Format(time.RFC3339))
		require.NoError(t, err)
	}

	insert("n1", "agency-1", 80, "", base.Add(-2*time.Hour))
	insert("n2", "agency-1", 95, "hasParking,hasBalcony", base.Add(-1*time.Hour))
	insert("n3", "agency-2", 70, "", base)

	matches, err := db.GetRecentMatches("agency-1", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "n2", matches[0].ID)
	assert.Equal(t, []string{"hasParking", "hasBalcony"}, matches[0].VerificationLabels())
	assert.Equal(t, "n1", matches[1].ID)
	assert.Nil(t, matches[1].VerificationLabels())

	limited, err := db.GetRecentMatches("agency-1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "n2", limited[0].ID)
}

func TestTelegramConfigRoundtrip(t *testing.T) {
	db := setupDB(t)

	config, err := db.GetTelegramConfig()
	require.NoError(t, err)
	assert.Nil(t, config)

	require.NoError(t, db.UpdateTelegramConfig(&models.TelegramConfigRequest{
		IsEnabled: true,
		BotToken:  "123456789:test-token-value",
		ChatID:    "-100200300",
	}))

	config, err = db.GetTelegramConfig()
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.True(t, config.IsEnabled)
	assert.Equal(t, "-100200300", config.ChatID)

	// A second update replaces the first.
	require.NoError(t, db.UpdateTelegramConfig(&models.TelegramConfigRequest{
		IsEnabled: false,
		BotToken:  "123456789:other-token-value",
		ChatID:    "-100200301",
	}))
	config, err = db.GetTelegramConfig()
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.False(t, config.IsEnabled)
}

func TestGormUpsertMatchNotifications(t *testing.T) {
	gdb, err := NewTestDB()
	require.NoError(t, err)
	require.NoError(t, MigrateSchema(gdb))

	first := &models.MatchNotification{
		ID:         "notif-1",
		AgencyID:   "agency-1",
		LeadID:     "lead-1",
		PropertyID: "prop-1",
		MatchScore: 80,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, UpsertMatchNotifications(gdb, []*models.MatchNotification{first}))

	// Same pair again with a new score must update, not duplicate.
	second := &models.MatchNotification{
		ID:                   "notif-2",
		AgencyID:             "agency-1",
		LeadID:               "lead-1",
		PropertyID:           "prop-1",
		MatchScore:           93,
		RequiresVerification: "hasParking",
		CreatedAt:            time.Now().UTC(),
	}
	require.NoError(t, UpsertMatchNotifications(gdb, []*models.MatchNotification{second}))

	var count int64
	require.NoError(t, gdb.Model(&models.MatchNotification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var stored models.MatchNotification
	require.NoError(t, gdb.First(&stored).Error)
	assert.Equal(t, 93, stored.MatchScore)
	assert.Equal(t, []string{"hasParking"}, stored.VerificationLabels())
}
