package history

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/nodeflow/internal/database"
	"github.com/BaSui01/nodeflow/types"
)

// GormStore keeps runs in the runs and node_records tables. The schema
// is created by internal/migration.
type GormStore struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

func NewGormStore(pool *database.PoolManager, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{
		pool:   pool,
		logger: logger.With(zap.String("component", "history_store")),
	}
}

// Save replaces any earlier record with the same id.
func (s *GormStore) Save(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return types.NewError(types.ErrInvalidArgs, "run id is required")
	}
	rec := run.clone()
	for i := range rec.Nodes {
		rec.Nodes[i].ID = 0
		rec.Nodes[i].RunID = rec.ID
	}

	err := s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", rec.ID).Delete(&NodeRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", rec.ID).Delete(&Run{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return types.Errorf(types.ErrStorage, "save run %s", run.ID).WithCause(err)
	}
	s.logger.Debug("run saved", zap.String("run_id", run.ID), zap.Int("nodes", len(rec.Nodes)))
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.pool.DB().WithContext(ctx).
		Preload("Nodes", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.Errorf(types.ErrNotFound, "run %s not found", id)
	}
	if err != nil {
		return nil, types.Errorf(types.ErrStorage, "load run %s", id).WithCause(err)
	}
	return &run, nil
}

func (s *GormStore) List(ctx context.Context, f Filter) ([]*Run, error) {
	q := s.pool.DB().WithContext(ctx).Model(&Run{})
	if f.Graph != "" {
		q = q.Where("graph = ?", f.Graph)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if !f.From.IsZero() {
		q = q.Where("start_time >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("start_time <= ?", f.To)
	}

	var runs []*Run
	if err := q.Order("start_time DESC").Limit(f.limit()).Find(&runs).Error; err != nil {
		return nil, types.NewError(types.ErrStorage, "list runs").WithCause(err)
	}
	return runs, nil
}

// Count is used by `nodeflow history` to report the table size.
func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.DB().WithContext(ctx).Model(&Run{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
