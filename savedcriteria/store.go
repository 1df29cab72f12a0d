// Package savedcriteria persists named criteria per user and table.
package savedcriteria

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theplant/datahub/criteria"
)

// DefaultUser owns criteria saved without a user.
const DefaultUser = "SYSTEM"

var ErrNotFound = errors.New("saved criteria not found")

// Record is one saved criteria row. The raw query lives in its own column and
// wins over any raw query inside Criteria when loaded.
type Record struct {
	ID        uint                                       `gorm:"primaryKey"`
	UserID    string                                     `gorm:"size:255;not null;uniqueIndex:idx_saved_criteria_key"`
	Table     string                                     `gorm:"column:table_name;size:255;not null;uniqueIndex:idx_saved_criteria_key"`
	Name      string                                     `gorm:"size:255;not null;uniqueIndex:idx_saved_criteria_key"`
	Criteria  datatypes.JSONType[criteria.SavedCriteria] `gorm:"not null"`
	RawQuery  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "saved_criteria"
}

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func userOrDefault(user string) string {
	if strings.TrimSpace(user) == "" {
		return DefaultUser
	}
	return user
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return errors.Wrap(err, "migrate saved criteria")
	}
	return nil
}

func (s *Store) scope(ctx context.Context, user, table string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&Record{}).
		Where("user_id = ? AND table_name = ?", userOrDefault(user), table)
}

// ListNames returns the names saved by user for table, sorted.
func (s *Store) ListNames(ctx context.Context, user, table string) ([]string, error) {
	names := []string{}
	if err := s.scope(ctx, user, table).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, errors.Wrap(err, "list saved criteria names")
	}
	return names, nil
}

// Load returns the named criteria, or an error wrapping ErrNotFound.
func (s *Store) Load(ctx context.Context, user, table, name string) (*criteria.SavedCriteria, error) {
	var rec Record
	err := s.scope(ctx, user, table).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "load %q for table %q", name, table)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load saved criteria %q", name)
	}

	data := rec.Criteria.Data()
	sc := data.Clone()
	sc.Name = rec.Name
	sc.RawQuery = ""
	if rec.RawQuery != nil {
		sc.RawQuery = *rec.RawQuery
	}
	return sc, nil
}

// Save inserts sc under sc.Name, or replaces the filters, sorts and raw
// query of an existing entry with the same name.
func (s *Store) Save(ctx context.Context, user, table string, sc *criteria.SavedCriteria) error {
	if sc == nil {
		return errors.New("saved criteria must be set")
	}
	if strings.TrimSpace(sc.Name) == "" {
		return errors.New("saved criteria name must be set")
	}

	stored := sc.Clone()
	stored.RawQuery = ""
	rec := &Record{
		UserID:   userOrDefault(user),
		Table:    table,
		Name:     sc.Name,
		Criteria: datatypes.NewJSONType(*stored),
	}
	if sc.RawQuery != "" {
		rec.RawQuery = &sc.RawQuery
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "table_name"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"criteria", "raw_query", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		s.logger.ErrorContext(ctx, "save criteria", "user", rec.UserID, "table", table, "name", sc.Name, "error", err)
		return errors.Wrapf(err, "save saved criteria %q", sc.Name)
	}
	s.logger.InfoContext(ctx, "saved criteria",
		"user", rec.UserID,
		"table", table,
		"name", sc.Name,
		"filters", len(sc.Filters),
		"sorts", len(sc.Sorts),
	)
	return nil
}

// Delete removes the named criteria, or returns an error wrapping ErrNotFound.
func (s *Store) Delete(ctx context.Context, user, table, name string) error {
	res := s.scope(ctx, user, table).Where("name = ?", name).Delete(&Record{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete saved criteria %q", name)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "delete %q for table %q", name, table)
	}
	return nil
}
