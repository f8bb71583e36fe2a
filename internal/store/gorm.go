package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
)

type LobbyModel struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Code         string         `gorm:"size:6;uniqueIndex;not null"`
	Name         string         `gorm:"size:64;not null"`
	HostPlayerID string         `gorm:"size:64;not null"`
	Status       string         `gorm:"size:16;index;not null"`
	IsPublic     bool           `gorm:"index;not null"`
	Settings     datatypes.JSON `gorm:"type:jsonb;not null"`
	PlayerCount  int            `gorm:"not null"`
	MaxPlayers   int            `gorm:"not null"`
	CreatedAt    time.Time      `gorm:"index;not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

func (LobbyModel) TableName() string { return "lobbies" }

type PlayerStatsModel struct {
	PlayerID          string `gorm:"primaryKey;size:64"`
	Username          string `gorm:"size:64"`
	GamesPlayed       int    `gorm:"not null;default:0"`
	GamesWon          int    `gorm:"index;not null;default:0"`
	MinigamesWon      int    `gorm:"not null;default:0"`
	LivesLost         int    `gorm:"not null;default:0"`
	TimePlayedSeconds int    `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (PlayerStatsModel) TableName() string { return "player_stats" }

type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects to Postgres and migrates the lobby and stats tables.
func Open(dsn string, pool PoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if err := db.AutoMigrate(&LobbyModel{}, &PlayerStatsModel{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

type GormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewGormStore(db *gorm.DB, log *zap.Logger) *GormStore {
	return &GormStore{db: db, log: log}
}

func (s *GormStore) CreateLobby(ctx context.Context, rec LobbyRecord) error {
	settings, err := json.Marshal(rec.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	model := LobbyModel{
		ID:           uuid.New(),
		Code:         rec.Code,
		Name:         rec.Name,
		HostPlayerID: rec.HostPlayerID,
		Status:       string(rec.Status),
		IsPublic:     rec.Settings.IsPublic,
		Settings:     datatypes.JSON(settings),
		PlayerCount:  rec.PlayerCount,
		MaxPlayers:   rec.MaxPlayers,
		CreatedAt:    rec.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create lobby %s: %w", rec.Code, err)
	}
	return nil
}

func (s *GormStore) DeleteLobby(ctx context.Context, code string) error {
	if err := s.db.WithContext(ctx).Where("code = ?", code).Delete(&LobbyModel{}).Error; err != nil {
		return fmt.Errorf("delete lobby %s: %w", code, err)
	}
	return nil
}

func (s *GormStore) updateLobby(ctx context.Context, code, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&LobbyModel{}).Where("code = ?", code).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("update lobby %s %s: %w", code, column, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) UpdateLobbyStatus(ctx context.Context, code string, status engine.Status) error {
	return s.updateLobby(ctx, code, "status", string(status))
}

func (s *GormStore) UpdateLobbyPlayerCount(ctx context.Context, code string, count int) error {
	return s.updateLobby(ctx, code, "player_count", count)
}

func (s *GormStore) UpsertPlayerStats(ctx context.Context, d StatsDelta) error {
	model := PlayerStatsModel{
		PlayerID:          d.PlayerID,
		Username:          d.Username,
		GamesPlayed:       boolInt(d.GameCompleted),
		GamesWon:          boolInt(d.LobbyWin),
		MinigamesWon:      d.MinigameWins,
		LivesLost:         d.LivesLost,
		TimePlayedSeconds: d.SecondsPlayed,
	}

	updates := map[string]any{
		"minigames_won":       gorm.Expr("player_stats.minigames_won + ?", d.MinigameWins),
		"lives_lost":          gorm.Expr("player_stats.lives_lost + ?", d.LivesLost),
		"time_played_seconds": gorm.Expr("player_stats.time_played_seconds + ?", d.SecondsPlayed),
		"games_won":           gorm.Expr("player_stats.games_won + ?", boolInt(d.LobbyWin)),
		"games_played":        gorm.Expr("player_stats.games_played + ?", boolInt(d.GameCompleted)),
		"updated_at":          time.Now(),
	}
	if d.Username != "" {
		updates["username"] = d.Username
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("upsert stats %s: %w", d.PlayerID, err)
	}
	return nil
}

func (s *GormStore) ListPublicLobbies(ctx context.Context, since time.Time, limit int) ([]LobbyRecord, error) {
	var models []LobbyModel
	err := s.db.WithContext(ctx).
		Where("is_public = ? AND status IN ? AND created_at >= ?",
			true, []string{string(engine.StatusWaiting), string(engine.StatusInProgress)}, since).
		Order("CASE WHEN status = 'waiting' THEN 0 ELSE 1 END, created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list public lobbies: %w", err)
	}

	out := make([]LobbyRecord, 0, len(models))
	for _, m := range models {
		rec, err := m.record()
		if err != nil {
			s.log.Warn("skipping lobby with unreadable settings", zap.String("code", m.Code), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m LobbyModel) record() (LobbyRecord, error) {
	var settings engine.Settings
	if err := json.Unmarshal(m.Settings, &settings); err != nil {
		return LobbyRecord{}, err
	}
	return LobbyRecord{
		ID:           m.ID.String(),
		Code:         m.Code,
		Name:         m.Name,
		HostPlayerID: m.HostPlayerID,
		Status:       engine.Status(m.Status),
		Settings:     settings,
		PlayerCount:  m.PlayerCount,
		MaxPlayers:   m.MaxPlayers,
		CreatedAt:    m.CreatedAt,
	}, nil
}

func (s *GormStore) DeleteStaleLobbies(ctx context.Context, cutoff time.Time, active []string) (int64, error) {
	q := s.db.WithContext(ctx).Where("created_at < ?", cutoff)
	if len(active) > 0 {
		q = q.Where("code NOT IN ?", active)
	}
	res := q.Delete(&LobbyModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete stale lobbies: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) GetPlayerStats(ctx context.Context, playerID string) (PlayerStats, error) {
	var m PlayerStatsModel
	err := s.db.WithContext(ctx).Where("player_id = ?", playerID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PlayerStats{}, ErrNotFound
	}
	if err != nil {
		return PlayerStats{}, fmt.Errorf("get stats %s: %w", playerID, err)
	}
	return m.stats(), nil
}

func (s *GormStore) Leaderboard(ctx context.Context, limit int) ([]PlayerStats, error) {
	var models []PlayerStatsModel
	err := s.db.WithContext(ctx).
		Order("games_won DESC, minigames_won DESC, player_id").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	out := make([]PlayerStats, len(models))
	for i, m := range models {
		out[i] = m.stats()
	}
	return out, nil
}

func (m PlayerStatsModel) stats() PlayerStats {
	return PlayerStats{
		PlayerID:          m.PlayerID,
		Username:          m.Username,
		GamesPlayed:       m.GamesPlayed,
		GamesWon:          m.GamesWon,
		MinigamesWon:      m.MinigamesWon,
		LivesLost:         m.LivesLost,
		TimePlayedSeconds: m.TimePlayedSeconds,
		UpdatedAt:         m.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
