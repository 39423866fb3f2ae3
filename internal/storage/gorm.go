package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/lineup"
)

// MatchLineup is the persisted row. Positions are stored as a JSON text
// column; Postgres never needs to look inside them.
type MatchLineup struct {
	ID        uint   `gorm:"primaryKey"`
	MatchID   int    `gorm:"uniqueIndex:idx_match_team;not null"`
	TeamID    int    `gorm:"uniqueIndex:idx_match_team;not null"`
	Positions string `gorm:"type:jsonb;default:'[]'"`
	Notes     string
	Version   int `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Gorm struct {
	db *gorm.DB
}

// OpenGorm connects to Postgres and migrates the lineup table.
func OpenGorm(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&MatchLineup{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Load(ctx context.Context, matchID, teamID int) (*Record, error) {
	var row MatchLineup
	err := g.db.WithContext(ctx).
		Where("match_id = ? AND team_id = ?", matchID, teamID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load lineup: %w", err)
	}

	var positions []lineup.PositionEntry
	if row.Positions != "" {
		if err := json.Unmarshal([]byte(row.Positions), &positions); err != nil {
			return nil, fmt.Errorf("load lineup: corrupt positions: %w", err)
		}
	}
	return &Record{
		MatchID:   row.MatchID,
		TeamID:    row.TeamID,
		Positions: positions,
		Notes:     row.Notes,
		Version:   row.Version,
	}, nil
}

func (g *Gorm) Save(ctx context.Context, rec *Record) error {
	positions, err := json.Marshal(rec.Positions)
	if err != nil {
		return fmt.Errorf("save lineup: %w", err)
	}
	row := MatchLineup{
		MatchID:   rec.MatchID,
		TeamID:    rec.TeamID,
		Positions: string(positions),
		Notes:     rec.Notes,
		Version:   rec.Version,
	}
	err = g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_id"}, {Name: "team_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"positions", "notes", "version", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save lineup: %w", err)
	}
	return nil
}
