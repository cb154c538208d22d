package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"leadmatch/server/config"
	"leadmatch/server/internal/database"
	"leadmatch/server/internal/matching"
	"leadmatch/server/internal/models"
	"leadmatch/server/internal/queue"
)

// Store is the slice of the lead/property store the matchmaker needs.
type Store interface {
	GetLeadsByAgency(agencyID string) ([]models.Lead, error)
	GetRecentProperties(agencyID string, since time.Time) ([]models.Property, error)
	GetPropertiesCreatedSince(since time.Time) ([]models.Property, error)
}

// Notifier delivers match notifications to agents. Delivery failures
// are logged, never rolled back into the matchmaking transaction.
type Notifier interface {
	NotifyMatches(property *models.Property, matches []models.MatchResult) error
}

// Matchmaker consumes newly ingested properties from the queue, runs
// the matching engine against the owning agency's lead pool and
// persists one notification per match.
type Matchmaker struct {
	db        *gorm.DB
	store     Store
	engine    *matching.Engine
	queue     *queue.PropertyQueue
	notifier  Notifier
	config    *config.Config
	logger    *logrus.Logger
	now       func() time.Time
	jobs      chan *models.Property
	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewMatchmaker creates a new matchmaker instance
func NewMatchmaker(db *gorm.DB, store Store, engine *matching.Engine, propertyQueue *queue.PropertyQueue, notifier Notifier, cfg *config.Config, logger *logrus.Logger) *Matchmaker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Matchmaker{
		db:       db,
		store:    store,
		engine:   engine,
		queue:    propertyQueue,
		notifier: notifier,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		jobs:     make(chan *models.Property, cfg.BatchProcessing.ProcessorCount),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetClock overrides the matchmaker's time source for deterministic
// tests.
func (m *Matchmaker) SetClock(now func() time.Time) {
	m.now = now
}

// Start launches the worker pool and registers the single queue
// subscriber. Registration is synchronous so a property pushed after
// Start returns always reaches a worker, and exactly one worker
// processes it.
func (m *Matchmaker) Start() {
	for i := 0; i < m.config.BatchProcessing.ProcessorCount; i++ {
		m.waitGroup.Add(1)
		go m.worker()
	}

	m.queue.Subscribe(func(property *models.Property) error {
		select {
		case m.jobs <- property:
			return nil
		case <-m.ctx.Done():
			return m.ctx.Err()
		}
	})
}

// Stop cancels the workers and waits for in-flight matchmaking to
// finish.
func (m *Matchmaker) Stop() {
	m.cancel()
	m.waitGroup.Wait()
}

func (m *Matchmaker) worker() {
	defer m.waitGroup.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case property := <-m.jobs:
			if err := m.ProcessProperty(property); err != nil {
				m.logger.WithError(err).WithField("property_id", property.ID).Error("Matchmaking failed for property")
			}
		}
	}
}

// ProcessProperty runs the full matchmaking pipeline for one property:
// fetch the agency's recent properties and lead pool, match, persist
// notifications with retry, then hand qualifying matches to the
// notifier.
func (m *Matchmaker) ProcessProperty(property *models.Property) error {
	now := m.now()
	log := m.logger.WithFields(logrus.Fields{
		"property_id": property.ID,
		"agency_id":   property.AgencyID,
	})

	dedupCutoff := now.Add(-time.Duration(m.config.Matching.DedupWindowDays) * 24 * time.Hour)
	existing, err := m.store.GetRecentProperties(property.AgencyID, dedupCutoff)
	if err != nil {
		return fmt.Errorf("failed to fetch recent properties: %w", err)
	}

	if m.engine.IsDuplicate(*property, property.AgencyID, existing, now) {
		log.Info("Skipping matchmaking for duplicate property")
		return nil
	}

	leads, err := m.store.GetLeadsByAgency(property.AgencyID)
	if err != nil {
		return fmt.Errorf("failed to fetch leads: %w", err)
	}

	matches := m.engine.FindMatches(*property, property.AgencyID, leads, existing, now)
	if len(matches) == 0 {
		log.Info("No matching leads for property")
		return nil
	}

	notifications := make([]*models.MatchNotification, len(matches))
	for i, match := range matches {
		notifications[i] = &models.MatchNotification{
			ID:                   uuid.NewString(),
			AgencyID:             property.AgencyID,
			LeadID:               match.LeadID,
			PropertyID:           property.ID,
			MatchScore:           match.MatchScore,
			RequiresVerification: strings.Join(match.RequiresVerification, ","),
			CreatedAt:            now,
		}
	}

	if err := m.persistNotifications(notifications); err != nil {
		return err
	}
	log.WithField("match_count", len(matches)).Info("Persisted match notifications")

	if m.notifier != nil {
		notify := matches[:0:0]
		for _, match := range matches {
			if match.MatchScore >= m.config.Matching.NotifyMinScore {
				notify = append(notify, match)
			}
		}
		if len(notify) > 0 {
			if err := m.notifier.NotifyMatches(property, notify); err != nil {
				log.WithError(err).Error("Failed to deliver match notifications")
			}
		}
	}

	return nil
}

// persistNotifications writes the batch in a transaction with the
// configured retry policy.
func (m *Matchmaker) persistNotifications(notifications []*models.MatchNotification) error {
	var err error
	for attempt := 0; attempt <= m.config.BatchProcessing.MaxRetries; attempt++ {
		if attempt > 0 {
			m.logger.Infof("Retrying notification batch, attempt %d of %d", attempt, m.config.BatchProcessing.MaxRetries)
			time.Sleep(time.Duration(m.config.BatchProcessing.RetryDelay) * time.Second)
		}

		err = m.db.Transaction(func(tx *gorm.DB) error {
			if err := database.UpsertMatchNotifications(tx, notifications); err != nil {
				return fmt.Errorf("failed to upsert match notifications: %w", err)
			}
			return nil
		})

		if err == nil {
			return nil
		}

		m.logger.Errorf("Notification batch failed: %v", err)
	}

	return fmt.Errorf("failed to persist notifications after %d attempts: %w", m.config.BatchProcessing.MaxRetries, err)
}

// RematchRecent re-runs matchmaking for every property ingested inside
// the rematch window, catching leads registered after the property
// arrived. The notification upsert keeps this idempotent.
func (m *Matchmaker) RematchRecent() error {
	return m.RematchSince(m.now().Add(-time.Duration(m.config.Matching.RematchWindowHours) * time.Hour))
}

// RematchSince re-runs matchmaking for every property created on or
// after the cutoff.
func (m *Matchmaker) RematchSince(since time.Time) error {
	properties, err := m.store.GetPropertiesCreatedSince(since)
	if err != nil {
		return fmt.Errorf("failed to fetch properties for rematch: %w", err)
	}

	var failed int
	for i := range properties {
		if err := m.ProcessProperty(&properties[i]); err != nil {
			failed++
			m.logger.WithError(err).WithField("property_id", properties[i].ID).Error("Rematch failed for property")
		}
	}

	m.logger.WithFields(logrus.Fields{
		"property_count": len(properties),
		"failed":         failed,
	}).Info("Rematch sweep completed")

	if failed > 0 {
		return fmt.Errorf("rematch sweep: %d of %d properties failed", failed, len(properties))
	}
	return nil
}
