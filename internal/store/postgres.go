package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"type-royale/internal/db"
	"type-royale/internal/game"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres keeps each session as a JSONB document in race_sessions.
type Postgres struct {
	conn  *gorm.DB
	clock clockwork.Clock
}

func NewPostgres(conn *gorm.DB, clock clockwork.Clock) *Postgres {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Postgres{conn: conn, clock: clock}
}

func (p *Postgres) now() time.Time {
	return p.clock.Now().UTC()
}

func (p *Postgres) Get(ctx context.Context, id string) (*game.Session, error) {
	var row db.RaceSession
	err := p.conn.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, p.now()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return decodeRow(row)
}

func (p *Postgres) Create(ctx context.Context, s *game.Session) error {
	row, err := encodeRow(s, p.now())
	if err != nil {
		return err
	}
	return p.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND expires_at <= ?", s.ID, p.now()).
			Delete(&db.RaceSession{}).Error; err != nil {
			return fmt.Errorf("drop expired session %s: %w", s.ID, err)
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrExists
			}
			return fmt.Errorf("insert session %s: %w", s.ID, err)
		}
		return nil
	})
}

func (p *Postgres) Put(ctx context.Context, s *game.Session) error {
	s.Version++
	row, err := encodeRow(s, p.now())
	if err != nil {
		return err
	}
	err = p.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "state", "visibility", "data", "updated_at", "expires_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", s.ID, err)
	}
	return nil
}

func (p *Postgres) Swap(ctx context.Context, s *game.Session, prevVersion int64) error {
	next := s.Clone()
	next.Version = prevVersion + 1
	row, err := encodeRow(next, p.now())
	if err != nil {
		return err
	}
	result := p.conn.WithContext(ctx).Model(&db.RaceSession{}).
		Where("id = ? AND version = ? AND expires_at > ?", s.ID, prevVersion, p.now()).
		Updates(map[string]any{
			"version":    row.Version,
			"state":      row.State,
			"visibility": row.Visibility,
			"data":       row.Data,
			"updated_at": row.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("update session %s: %w", s.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := p.Get(ctx, s.ID); err != nil {
			return err
		}
		return ErrConflict
	}
	s.Version = next.Version
	return nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	if err := p.conn.WithContext(ctx).Where("id = ?", id).Delete(&db.RaceSession{}).Error; err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, filter ListFilter) ([]*game.Session, error) {
	query := p.conn.WithContext(ctx).Where("expires_at > ?", p.now())
	if filter.State != "" {
		query = query.Where("state = ?", string(filter.State))
	}
	if filter.Visibility != "" {
		query = query.Where("visibility = ?", string(filter.Visibility))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []db.RaceSession
	if err := query.Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	list := make([]*game.Session, 0, len(rows))
	for _, row := range rows {
		s, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, nil
}

func (p *Postgres) Sweep(ctx context.Context) (int, error) {
	result := p.conn.WithContext(ctx).Where("expires_at <= ?", p.now()).Delete(&db.RaceSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("sweep sessions: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	var count int64
	if err := p.conn.WithContext(ctx).Model(&db.RaceSession{}).
		Where("expires_at > ?", p.now()).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(count), nil
}

func encodeRow(s *game.Session, now time.Time) (db.RaceSession, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return db.RaceSession{}, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return db.RaceSession{
		ID:         s.ID,
		Version:    s.Version,
		State:      string(s.State),
		Visibility: string(s.Visibility),
		Data:       datatypes.JSON(data),
		CreatedAt:  s.CreatedAt.UTC(),
		UpdatedAt:  now,
		ExpiresAt:  s.ExpiresAt.UTC(),
	}, nil
}

func decodeRow(row db.RaceSession) (*game.Session, error) {
	var s game.Session
	if err := json.Unmarshal(row.Data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", row.ID, err)
	}
	s.Version = row.Version
	if s.Players == nil {
		s.Players = make(map[string]*game.Player)
	}
	if s.RematchVotes == nil {
		s.RematchVotes = make(map[string]bool)
	}
	return &s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
