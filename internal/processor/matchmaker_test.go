package processor

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"leadmatch/server/config"
	"leadmatch/server/internal/database"
	"leadmatch/server/internal/matching"
	"leadmatch/server/internal/models"
	"leadmatch/server/internal/queue"
)

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

// MockStore is a mock implementation of the Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetLeadsByAgency(agencyID string) ([]models.Lead, error) {
	args := m.Called(agencyID)
	return args.Get(0).([]models.Lead), args.Error(1)
}

func (m *MockStore) GetRecentProperties(agencyID string, since time.Time) ([]models.Property, error) {
	args := m.Called(agencyID, since)
	return args.Get(0).([]models.Property), args.Error(1)
}

func (m *MockStore) GetPropertiesCreatedSince(since time.Time) ([]models.Property, error) {
	args := m.Called(since)
	return args.Get(0).([]models.Property), args.Error(1)
}

// MockNotifier is a mock implementation of the Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyMatches(property *models.Property, matches []models.MatchResult) error {
	args := m.Called(property, matches)
	return args.Error(0)
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.NewTestDB()
	require.NoError(t, err)

	err = database.MigrateSchema(db)
	require.NoError(t, err)

	return db
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Matching.DedupWindowDays = 14
	cfg.Matching.StaleLeadMonths = 6
	cfg.Matching.NotifyMinScore = 60
	cfg.Matching.RematchWindowHours = 24
	cfg.BatchProcessing.ProcessorCount = 1
	cfg.BatchProcessing.MaxRetries = 1
	cfg.BatchProcessing.RetryDelay = 0
	return cfg
}

func newTestMatchmaker(t *testing.T, store Store, notifier Notifier) *Matchmaker {
	db := setupTestDB(t)
	cfg := testConfig()
	engine := matching.NewEngine(14*24*time.Hour, 6)
	propertyQueue := queue.NewPropertyQueue(10, logrus.New())

	m := NewMatchmaker(db, store, engine, propertyQueue, notifier, cfg, logrus.New())
	m.SetClock(func() time.Time { return testNow })
	return m
}

func testProperty() *models.Property {
	rooms := 3.0
	return &models.Property{
		ID:        "prop-1",
		AgencyID:  "agency-1",
		Address:   "12 Herzl St",
		City:      "Tel Aviv",
		Price:     1000000,
		Type:      models.PropertyTypeSale,
		Rooms:     &rooms,
		CreatedAt: testNow,
	}
}

func TestProcessProperty_PersistsNotifications(t *testing.T) {
	store := &MockStore{}
	notifier := &MockNotifier{}
	m := newTestMatchmaker(t, store, notifier)

	leads := []models.Lead{
		{
			ID:        "lead-1",
			AgencyID:  "agency-1",
			Name:      "Dana",
			Phone:     "050-0000000",
			Status:    models.LeadStatusNew,
			CreatedAt: testNow.AddDate(0, -1, 0),
			Requirements: models.LeadRequirements{
				DesiredCities: []string{"Tel Aviv"},
			},
		},
		{
			ID:        "lead-closed",
			AgencyID:  "agency-1",
			Status:    models.LeadStatusWon,
			CreatedAt: testNow.AddDate(0, -1, 0),
		},
	}

	store.On("GetRecentProperties", "agency-1", mock.Anything).Return([]models.Property{}, nil)
	store.On("GetLeadsByAgency", "agency-1").Return(leads, nil)
	notifier.On("NotifyMatches", mock.Anything, mock.Anything).Return(nil).Once()

	err := m.ProcessProperty(testProperty())
	require.NoError(t, err)

	var notifications []models.MatchNotification
	require.NoError(t, m.db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, "lead-1", notifications[0].LeadID)
	assert.Equal(t, "prop-1", notifications[0].PropertyID)
	assert.Equal(t, 100, notifications[0].MatchScore)

	notifier.AssertExpectations(t)
}

func TestProcessProperty_SkipsDuplicate(t *testing.T) {
	store := &MockStore{}
	notifier := &MockNotifier{}
	m := newTestMatchmaker(t, store, notifier)

	prop := testProperty()
	prop.ID = "prop-reingested"

	// Same address and price ingested three days ago.
	existing := *testProperty()
	existing.CreatedAt = testNow.AddDate(0, 0, -3)
	store.On("GetRecentProperties", "agency-1", mock.Anything).Return([]models.Property{existing}, nil)

	err := m.ProcessProperty(prop)
	require.NoError(t, err)

	// No leads fetched, nothing persisted, nobody notified.
	store.AssertNotCalled(t, "GetLeadsByAgency", mock.Anything)
	notifier.AssertNotCalled(t, "NotifyMatches", mock.Anything, mock.Anything)

	var count int64
	require.NoError(t, m.db.Model(&models.MatchNotification{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestProcessProperty_NotifierThresholdAndFailure(t *testing.T) {
	store := &MockStore{}
	notifier := &MockNotifier{}
	m := newTestMatchmaker(t, store, notifier)

	// One strong match (100) and one weak baseline match (50): only
	// the strong one crosses the notification threshold.
	leads := []models.Lead{
		{
			ID:        "lead-strong",
			AgencyID:  "agency-1",
			Status:    models.LeadStatusNew,
			CreatedAt: testNow.AddDate(0, -1, 0),
			Requirements: models.LeadRequirements{
				DesiredCities: []string{"Tel Aviv"},
			},
		},
		{
			ID:        "lead-baseline",
			AgencyID:  "agency-1",
			Status:    models.LeadStatusNew,
			CreatedAt: testNow.AddDate(0, -1, 0),
		},
	}

	store.On("GetRecentProperties", "agency-1", mock.Anything).Return([]models.Property{}, nil)
	store.On("GetLeadsByAgency", "agency-1").Return(leads, nil)

	var notified []models.MatchResult
	notifier.On("NotifyMatches", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		notified = args.Get(1).([]models.MatchResult)
	}).Return(assert.AnError)

	// A failing notifier must not fail the pipeline.
	err := m.ProcessProperty(testProperty())
	require.NoError(t, err)

	require.Len(t, notified, 1)
	assert.Equal(t, "lead-strong", notified[0].LeadID)

	// Both matches are persisted regardless of the threshold.
	var count int64
	require.NoError(t, m.db.Model(&models.MatchNotification{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestProcessProperty_RerunUpdatesInsteadOfDuplicating(t *testing.T) {
	store := &MockStore{}
	m := newTestMatchmaker(t, store, nil)

	leads := []models.Lead{
		{
			ID:        "lead-1",
			AgencyID:  "agency-1",
			Status:    models.LeadStatusNew,
			CreatedAt: testNow.AddDate(0, -1, 0),
		},
	}
	store.On("GetRecentProperties", "agency-1", mock.Anything).Return([]models.Property{}, nil)
	store.On("GetLeadsByAgency", "agency-1").Return(leads, nil)

	require.NoError(t, m.ProcessProperty(testProperty()))
	require.NoError(t, m.ProcessProperty(testProperty()))

	var count int64
	require.NoError(t, m.db.Model(&models.MatchNotification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRematchRecent(t *testing.T) {
	store := &MockStore{}
	m := newTestMatchmaker(t, store, nil)

	properties := []models.Property{*testProperty()}
	store.On("GetPropertiesCreatedSince", testNow.Add(-24*time.Hour)).Return(properties, nil)
	store.On("GetRecentProperties", "agency-1", mock.Anything).Return([]models.Property{}, nil)
	store.On("GetLeadsByAgency", "agency-1").Return([]models.Lead{
		{
			ID:        "lead-1",
			AgencyID:  "agency-1",
			Status:    models.LeadStatusNew,
			CreatedAt: testNow.AddDate(0, -1, 0),
		},
	}, nil)

	require.NoError(t, m.RematchRecent())

	var count int64
	require.NoError(t, m.db.Model(&models.MatchNotification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestStart_OnePropertyNotifiesOnce(t *testing.T) {
	store := &MockStore{}
	notifier := &MockNotifier{}
	m := newTestMatchmaker(t, store, notifier)
	m.config.BatchProcessing.ProcessorCount = 2

	leads := []models.Lead{
		{
			ID:        "lead-1",
			AgencyID:  "agency-1",
			Status:    models.LeadStatusNew,
			CreatedAt: testNow.AddDate(0, -1, 0),
			Requirements: models.LeadRequirements{
				DesiredCities: []string{"Tel Aviv"},
			},
		},
	}
	store.On("GetRecentProperties", "agency-1", mock.Anything).Return([]models.Property{}, nil)
	store.On("GetLeadsByAgency", "agency-1").Return(leads, nil)
	notifier.On("NotifyMatches", mock.Anything, mock.Anything).Return(nil)

	m.Start()
	m.queue.Start()
	defer m.queue.Close()

	// With two workers a single pushed property must still be matched
	// and notified exactly once.
	require.NoError(t, m.queue.Push(testProperty()))

	require.Eventually(t, func() bool {
		var count int64
		m.db.Model(&models.MatchNotification{}).Count(&count)
		return count == 1
	}, time.Second, 10*time.Millisecond)

	// Stop waits for the in-flight worker, so the call count is final.
	m.Stop()
	notifier.AssertNumberOfCalls(t, "NotifyMatches", 1)
}

func TestMatchmaker_StartStop(t *testing.T) {
	store := &MockStore{}
	m := newTestMatchmaker(t, store, nil)

	m.Start()
	m.Stop()

	m.queue.Close()
	assert.True(t, m.queue.IsClosed())
}
