package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/guildkit/ticketd/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the authoritative persistence boundary for the ticket engine.
// The datastore is the source of truth; any caching layered on top must be
// able to repopulate from these methods alone.
type Store interface {
	// NextTicketNumber reserves the next ticket number for (bot, guild).
	// Strictly increasing, gap-tolerant: a reserved number whose ticket
	// never materializes is simply skipped.
	NextTicketNumber(ctx context.Context, botID, guildID string) (int64, error)

	CreateSession(ctx context.Context, s *model.TicketSession) error
	SessionByThread(ctx context.Context, botID, guildID, threadID string) (*model.TicketSession, error)
	SaveSession(ctx context.Context, s *model.TicketSession) error
	LatestSessionByOpener(ctx context.Context, botID, guildID, userID string) (*model.TicketSession, error)

	// ListActiveSessions returns every open/claimed/pending session for the
	// bot, straight from the datastore. The auto-closer depends on this
	// never being served from a volatile cache.
	ListActiveSessions(ctx context.Context, botID string) ([]model.TicketSession, error)
	ListSessions(ctx context.Context, botID, guildID string, status model.SessionStatus, limit, offset int) ([]model.TicketSession, int64, error)

	UpsertTranscript(ctx context.Context, t *model.Transcript) error
	TranscriptByThread(ctx context.Context, botID, guildID, threadID string) (*model.Transcript, error)
}

type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) NextTicketNumber(ctx context.Context, botID, guildID string) (int64, error) {
	var value int64
	err := s.db.WithContext(ctx).Raw(
		`INSERT INTO ticket_counters (bot_id, guild_id, value)
		 VALUES (?, ?, 1)
		 ON CONFLICT (bot_id, guild_id)
		 DO UPDATE SET value = ticket_counters.value + 1
		 RETURNING value`,
		botID, guildID,
	).Scan(&value).Error
	if err != nil {
		return 0, fmt.Errorf("next ticket number: %w", err)
	}
	return value, nil
}

func (s *SQLStore) CreateSession(ctx context.Context, sess *model.TicketSession) error {
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateSession
		}
		return err
	}
	return nil
}

func (s *SQLStore) SessionByThread(ctx context.Context, botID, guildID, threadID string) (*model.TicketSession, error) {
	var sess model.TicketSession
	err := s.db.WithContext(ctx).
		Where("bot_id = ? AND guild_id = ? AND thread_id = ?", botID, guildID, threadID).
		First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *SQLStore) SaveSession(ctx context.Context, sess *model.TicketSession) error {
	return s.db.WithContext(ctx).Save(sess).Error
}

func (s *SQLStore) LatestSessionByOpener(ctx context.Context, botID, guildID, userID string) (*model.TicketSession, error) {
	var sess model.TicketSession
	err := s.db.WithContext(ctx).
		Where("bot_id = ? AND guild_id = ? AND opened_by = ?", botID, guildID, userID).
		Order("open_time DESC").
		First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *SQLStore) ListActiveSessions(ctx context.Context, botID string) ([]model.TicketSession, error) {
	var items []model.TicketSession
	err := s.db.WithContext(ctx).
		Where("bot_id = ? AND status IN ?", botID, []model.SessionStatus{
			model.SessionOpen, model.SessionClaimed, model.SessionPendingClose,
		}).
		Order("open_time ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *SQLStore) ListSessions(ctx context.Context, botID, guildID string, status model.SessionStatus, limit, offset int) ([]model.TicketSession, int64, error) {
	var items []model.TicketSession
	var total int64
	tx := s.db.WithContext(ctx).Model(&model.TicketSession{}).Where("bot_id = ?", botID)
	if guildID != "" {
		tx = tx.Where("guild_id = ?", guildID)
	}
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if err := tx.Order("open_time DESC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *SQLStore) UpsertTranscript(ctx context.Context, t *model.Transcript) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "bot_id"}, {Name: "guild_id"}, {Name: "thread_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"messages", "metadata"}),
	}).Create(t).Error
}

func (s *SQLStore) TranscriptByThread(ctx context.Context, botID, guildID, threadID string) (*model.Transcript, error) {
	var t model.Transcript
	err := s.db.WithContext(ctx).
		Where("bot_id = ? AND guild_id = ? AND thread_id = ?", botID, guildID, threadID).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTranscriptNotFound
		}
		return nil, err
	}
	return &t, nil
}
