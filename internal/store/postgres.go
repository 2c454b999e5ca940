package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/joberrors"
	"github.com/karnotxyz/madara-orchestrator/internal/logger"
)

// Postgres is a gorm-backed Store. Unlike the teacher's ClaimNextRunnable
// (SELECT ... FOR UPDATE SKIP LOCKED), mutation here never takes a row
// lock: Update issues a single conditional UPDATE ... WHERE id = ? AND
// version = ? and trusts RowsAffected as the sole signal of whether this
// call was the winning writer, per spec.md §9's design note to implement
// optimistic concurrency as a conditional write, not read-then-write.
type Postgres struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgres(db *gorm.DB, log *logger.Logger) *Postgres {
	return &Postgres{db: db, log: log.With("component", "PostgresJobStore")}
}

// Migrate creates/updates the job_items table. Called once at startup.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&record{})
}

func (p *Postgres) Create(ctx context.Context, item *job.Item) (*job.Item, error) {
	r := toRecord(item)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	err := p.db.WithContext(ctx).Create(r).Error
	if err != nil {
		if isUniqueViolation(err) {
			return nil, joberrors.ErrDuplicate
		}
		return nil, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, err)
	}
	return fromRecord(r), nil
}

func (p *Postgres) GetByID(ctx context.Context, id string) (*job.Item, error) {
	var r record
	err := p.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, err)
	}
	return fromRecord(&r), nil
}

func (p *Postgres) GetByInternalIDAndType(ctx context.Context, internalID string, jobType job.Type) (*job.Item, error) {
	var r record
	err := p.db.WithContext(ctx).
		Where("internal_id = ? AND job_type = ?", internalID, string(jobType)).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, err)
	}
	return fromRecord(&r), nil
}

func (p *Postgres) Update(ctx context.Context, current *job.Item, patch Patch) (*job.Item, error) {
	updates := map[string]interface{}{
		"version": gorm.Expr("version + 1"),
	}
	next := clone(current)
	if patch.Status != nil {
		updates["status"] = string(*patch.Status)
		next.Status = *patch.Status
	}
	if patch.ExternalID != nil {
		updates["external_id_kind"] = int(patch.ExternalID.Kind)
		updates["external_id_string"] = patch.ExternalID.Str
		if patch.ExternalID.Kind == job.ExternalIDInt {
			v := patch.ExternalID.Int
			updates["external_id_int"] = &v
		}
		next.ExternalID = *patch.ExternalID
	}
	if patch.Metadata != nil {
		meta := make(map[string]interface{}, len(patch.Metadata))
		for k, v := range patch.Metadata {
			meta[k] = v
		}
		updates["metadata"] = meta
		next.Metadata = patch.Metadata.Clone()
	}

	res := p.db.WithContext(ctx).Model(&record{}).
		Where("id = ? AND version = ?", current.ID, current.Version).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, joberrors.ErrStaleVersion
	}
	next.Version = current.Version + 1
	return next, nil
}

func (p *Postgres) UpdateStatus(ctx context.Context, current *job.Item, newStatus job.Status) (*job.Item, error) {
	return p.Update(ctx, current, Patch{Status: &newStatus})
}

func (p *Postgres) UpdateMetadata(ctx context.Context, current *job.Item, metadata job.Metadata) (*job.Item, error) {
	return p.Update(ctx, current, Patch{Metadata: metadata})
}

func (p *Postgres) LatestByType(ctx context.Context, jobType job.Type) (*job.Item, error) {
	var r record
	err := p.db.WithContext(ctx).
		Where("job_type = ?", string(jobType)).
		Order("CAST(internal_id AS BIGINT) DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, err)
	}
	return fromRecord(&r), nil
}

func (p *Postgres) LatestByTypeAndStatus(ctx context.Context, jobType job.Type, status job.Status) (*job.Item, error) {
	var r record
	err := p.db.WithContext(ctx).
		Where("job_type = ? AND status = ?", string(jobType), string(status)).
		Order("CAST(internal_id AS BIGINT) DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, err)
	}
	return fromRecord(&r), nil
}

func (p *Postgres) JobsAfterInternalIDByType(ctx context.Context, jobType job.Type, internalID string) ([]*job.Item, error) {
	var rs []record
	err := p.db.WithContext(ctx).
		Where("job_type = ? AND CAST(internal_id AS BIGINT) > CAST(? AS BIGINT)", string(jobType), internalID).
		Order("CAST(internal_id AS BIGINT) ASC").
		Find(&rs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, err)
	}
	return toItems(rs), nil
}

func (p *Postgres) JobsByStatuses(ctx context.Context, statuses []job.Status, limit int) ([]*job.Item, error) {
	strStatuses := make([]string, len(statuses))
	for i, s := range statuses {
		strStatuses[i] = string(s)
	}
	q := p.db.WithContext(ctx).Where("status IN ?", strStatuses).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rs []record
	if err := q.Find(&rs).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, err)
	}
	return toItems(rs), nil
}

// JobsWithoutSuccessor executes the discovery query as a left-anti-join:
// every aType/aStatus record whose internal_id has no matching bType row.
func (p *Postgres) JobsWithoutSuccessor(ctx context.Context, aType job.Type, aStatus job.Status, bType job.Type) ([]*job.Item, error) {
	var rs []record
	err := p.db.WithContext(ctx).
		Where("job_type = ? AND status = ?", string(aType), string(aStatus)).
		Where("NOT EXISTS (SELECT 1 FROM job_items b WHERE b.job_type = ? AND b.internal_id = job_items.internal_id)", string(bType)).
		Order("CAST(internal_id AS BIGINT) ASC").
		Find(&rs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, err)
	}
	return toItems(rs), nil
}

func toItems(rs []record) []*job.Item {
	out := make([]*job.Item, 0, len(rs))
	for i := range rs {
		out = append(out, fromRecord(&rs[i]))
	}
	return out
}

func isUniqueViolation(err error) bool {
	// postgres unique_violation SQLSTATE is 23505; pgx/gorm surface it in
	// the error string when a typed check isn't worth the import here.
	return err != nil && (strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key"))
}
