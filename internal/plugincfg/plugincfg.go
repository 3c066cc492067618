// Package plugincfg reads the ticket plugin's per-guild configuration. The
// configuration store and its default templates are owned elsewhere; this
// package only consumes the fields the ticket engine needs.
package plugincfg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotConfigured = errors.New("ticket plugin not configured for guild")

// AutoClose is one auto-close rule. The stored shape is a list; the first
// enabled entry wins.
type AutoClose struct {
	Enabled        bool   `json:"enabled"`
	ThresholdMS    int64  `json:"threshold_ms"`
	ReasonTemplate string `json:"reason_template"`
}

func (a AutoClose) Threshold() time.Duration {
	return time.Duration(a.ThresholdMS) * time.Millisecond
}

// RoleTimeLimit restricts how often members holding the role may open a new
// ticket.
type RoleTimeLimit struct {
	RoleID  string `json:"role_id"`
	LimitMS int64  `json:"limit_ms"`
}

func (r RoleTimeLimit) Limit() time.Duration {
	return time.Duration(r.LimitMS) * time.Millisecond
}

type RoleTimeLimits struct {
	Included []RoleTimeLimit `json:"included,omitempty"`
	Excluded []string        `json:"excluded,omitempty"`
}

type TicketConfig struct {
	BotID   string
	GuildID string
	Enabled bool

	// PanelChannelID hosts the intake message the open buttons hang off;
	// ticket threads are spawned from it.
	PanelChannelID      string
	AdminChannelID      string
	TranscriptChannelID string

	ModsRoleIDs    []string
	AutoClose      []AutoClose
	RoleTimeLimits RoleTimeLimits
}

// ActiveAutoClose returns the first enabled auto-close rule, or nil.
func (c *TicketConfig) ActiveAutoClose() *AutoClose {
	for i := range c.AutoClose {
		if c.AutoClose[i].Enabled {
			return &c.AutoClose[i]
		}
	}
	return nil
}

// IsStaffRole reports whether any of the roles is a configured mods role.
func (c *TicketConfig) IsStaffRole(roles []string) bool {
	for _, r := range roles {
		for _, mod := range c.ModsRoleIDs {
			if r == mod {
				return true
			}
		}
	}
	return false
}

// OpenLimitFor resolves the open cooldown for a member's role set. Excluded
// roles bypass every limit; otherwise the longest matching included limit
// applies.
func (c *TicketConfig) OpenLimitFor(roles []string) time.Duration {
	for _, r := range roles {
		for _, ex := range c.RoleTimeLimits.Excluded {
			if r == ex {
				return 0
			}
		}
	}
	var limit time.Duration
	for _, r := range roles {
		for _, inc := range c.RoleTimeLimits.Included {
			if r == inc.RoleID && inc.Limit() > limit {
				limit = inc.Limit()
			}
		}
	}
	return limit
}

type Store interface {
	Guild(ctx context.Context, botID, guildID string) (*TicketConfig, error)
}

// GuildTicketRow is the persisted row backing TicketConfig. Structured
// sub-configs live in JSONB columns.
type GuildTicketRow struct {
	ID      uint64 `gorm:"primaryKey"`
	BotID   string `gorm:"size:32;not null;uniqueIndex:idx_ticket_config_guild,priority:1"`
	GuildID string `gorm:"size:32;not null;uniqueIndex:idx_ticket_config_guild,priority:2"`
	Enabled bool   `gorm:"not null;default:false"`

	PanelChannelID      string `gorm:"size:32"`
	AdminChannelID      string `gorm:"size:32"`
	TranscriptChannelID string `gorm:"size:32"`

	ModsRoleIDs    datatypes.JSON `gorm:"type:jsonb"`
	AutoClose      datatypes.JSON `gorm:"type:jsonb"`
	RoleTimeLimits datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (GuildTicketRow) TableName() string { return "guild_ticket_configs" }

type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Guild(ctx context.Context, botID, guildID string) (*TicketConfig, error) {
	var row GuildTicketRow
	err := s.db.WithContext(ctx).
		Where("bot_id = ? AND guild_id = ?", botID, guildID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotConfigured
		}
		return nil, err
	}
	return decodeRow(&row)
}

func decodeRow(row *GuildTicketRow) (*TicketConfig, error) {
	cfg := &TicketConfig{
		BotID:               row.BotID,
		GuildID:             row.GuildID,
		Enabled:             row.Enabled,
		PanelChannelID:      row.PanelChannelID,
		AdminChannelID:      row.AdminChannelID,
		TranscriptChannelID: row.TranscriptChannelID,
	}
	if len(row.ModsRoleIDs) > 0 {
		if err := json.Unmarshal(row.ModsRoleIDs, &cfg.ModsRoleIDs); err != nil {
			return nil, fmt.Errorf("decode mods_role_ids: %w", err)
		}
	}
	if len(row.AutoClose) > 0 {
		if err := json.Unmarshal(row.AutoClose, &cfg.AutoClose); err != nil {
			return nil, fmt.Errorf("decode auto_close: %w", err)
		}
	}
	if len(row.RoleTimeLimits) > 0 {
		if err := json.Unmarshal(row.RoleTimeLimits, &cfg.RoleTimeLimits); err != nil {
			return nil, fmt.Errorf("decode role_time_limits: %w", err)
		}
	}
	return cfg, nil
}
