package models

import (
	"context"

	"github.com/crisisops/relief_backend/config"
	"gorm.io/gorm"
)

// ValueCount is one row of a grouped tally.
type ValueCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// FindSitesInBatches streams an event's exportable sites to fn in fixed
// size batches so exports never hold a full event in memory. Preliminary
// damage assessment rows are not exportable.
func FindSitesInBatches(ctx context.Context, eventId int, fn func(sites []Site) error) error {
	db := config.GetDB().WithContext(ctx)
	var batch []Site
	result := db.
		Where("event_id = ?", eventId).
		Where("work_type NOT LIKE 'pda%'").
		Order("case_number").
		FindInBatches(&batch, config.ExportBatchSize, func(_ *gorm.DB, _ int) error {
			return fn(batch)
		})
	return result.Error
}

// DistinctStatuses lists the status values in use for an event.
func DistinctStatuses(ctx context.Context, eventId int) ([]string, error) {
	db := config.GetDB().WithContext(ctx)
	var statuses []string
	err := db.Model(&Site{}).
		Where("event_id = ?", eventId).
		Distinct().
		Order("status").
		Pluck("status", &statuses).Error
	return statuses, err
}

// DistinctWorkTypes lists the work type values in use for an event.
func DistinctWorkTypes(ctx context.Context, eventId int) ([]string, error) {
	db := config.GetDB().WithContext(ctx)
	var workTypes []string
	err := db.Model(&Site{}).
		Where("event_id = ?", eventId).
		Distinct().
		Order("work_type").
		Pluck("work_type", &workTypes).Error
	return workTypes, err
}

// StatusCounts tallies an event's sites per status.
func StatusCounts(ctx context.Context, eventId int) ([]ValueCount, error) {
	return groupedCounts(ctx, eventId, "status")
}

// WorkTypeCounts tallies an event's sites per work type.
func WorkTypeCounts(ctx context.Context, eventId int) ([]ValueCount, error) {
	return groupedCounts(ctx, eventId, "work_type")
}

func groupedCounts(ctx context.Context, eventId int, column string) ([]ValueCount, error) {
	db := config.GetDB().WithContext(ctx)
	var counts []ValueCount
	err := db.Model(&Site{}).
		Select(column+" AS value, COUNT(*) AS count").
		Where("event_id = ?", eventId).
		Group(column).
		Order(column).
		Scan(&counts).Error
	return counts, err
}

// TodaysCreateAndEditCount reports how many of an event's sites were
// created or edited today, server time.
func TodaysCreateAndEditCount(ctx context.Context, eventId int) (int64, error) {
	db := config.GetDB().WithContext(ctx)
	var count int64
	err := db.Model(&Site{}).
		Where("event_id = ?", eventId).
		Where("DATE(updated_at) = CURDATE()").
		Count(&count).Error
	return count, err
}
