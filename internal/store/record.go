package store

import (
	"time"

	"gorm.io/datatypes"

	"github.com/karnotxyz/madara-orchestrator/internal/job"
)

// record is the gorm model backing job_items. external_id is split into two
// nullable columns to back job.ExternalID's tagged union (spec.md §3), and
// metadata is stored as jsonb via datatypes.JSONMap.
type record struct {
	ID               string `gorm:"primaryKey;type:uuid"`
	InternalID       string `gorm:"index:idx_job_items_type_internal,unique"`
	JobType          string `gorm:"index:idx_job_items_type_internal,unique"`
	Status           string `gorm:"index"`
	ExternalIDString string
	ExternalIDInt    *int64
	ExternalIDKind   int
	Metadata         datatypes.JSONMap
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (record) TableName() string { return "job_items" }

func toRecord(item *job.Item) *record {
	meta := make(datatypes.JSONMap, len(item.Metadata))
	for k, v := range item.Metadata {
		meta[k] = v
	}
	r := &record{
		ID:             item.ID,
		InternalID:     item.InternalID,
		JobType:        string(item.JobType),
		Status:         string(item.Status),
		ExternalIDKind: int(item.ExternalID.Kind),
		Metadata:       meta,
		Version:        item.Version,
	}
	switch item.ExternalID.Kind {
	case job.ExternalIDString:
		r.ExternalIDString = item.ExternalID.Str
	case job.ExternalIDInt:
		v := item.ExternalID.Int
		r.ExternalIDInt = &v
	}
	return r
}

func fromRecord(r *record) *job.Item {
	meta := make(job.Metadata, len(r.Metadata))
	for k, v := range r.Metadata {
		if s, ok := v.(string); ok {
			meta[k] = s
		}
	}
	item := &job.Item{
		ID:         r.ID,
		InternalID: r.InternalID,
		JobType:    job.Type(r.JobType),
		Status:     job.Status(r.Status),
		Metadata:   meta,
		Version:    r.Version,
	}
	switch job.ExternalIDKind(r.ExternalIDKind) {
	case job.ExternalIDString:
		item.ExternalID = job.NewExternalIDString(r.ExternalIDString)
	case job.ExternalIDInt:
		if r.ExternalIDInt != nil {
			item.ExternalID = job.NewExternalIDInt(*r.ExternalIDInt)
		}
	}
	return item
}
