package models

import (
	"context"
	"time"

	"github.com/crisisops/relief_backend/config"
	"github.com/crisisops/relief_backend/utils"
)

// Event is a disaster-response campaign. Every work order belongs to one
// event, and case numbers are scoped to it through CaseLabel.
type Event struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	CaseLabel string    `gorm:"size:10;not null" json:"case_label" binding:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEvent struct {
	Name      string `json:"name" binding:"required"`
	CaseLabel string `json:"case_label" binding:"required"`
}

func CreateEvent(ctx context.Context, input *NewEvent) (*Event, error) {

	if err := utils.ValidateUnique[Event](ctx, "name", input.Name, 0); err != nil {
		return nil, err
	}

	event := Event{
		Name:      input.Name,
		CaseLabel: input.CaseLabel,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// UpdateEvent renames an event or changes its case label. The label only
// affects case numbers allocated from now on; issued ones keep their
// prefix.
func UpdateEvent(ctx context.Context, id int, input *NewEvent) (*Event, error) {

	event, err := utils.FetchModel[Event](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Event](ctx, "name", input.Name, id); err != nil {
		return nil, err
	}

	event.Name = input.Name
	event.CaseLabel = input.CaseLabel

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(event).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Event](id); err != nil {
		return nil, err
	}
	return event, nil
}

// GetEvent looks up an event by id, redis first then db, caching the
// result. (may return RecordNotFound error)
func GetEvent(ctx context.Context, id int) (*Event, error) {

	result, err := utils.RetrieveRedis[Event](id)
	if err != nil {
		return nil, err
	}

	if result == nil {
		result, err = utils.FetchModel[Event](ctx, id)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedis[Event](result, id); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func GetEvents(ctx context.Context) ([]*Event, error) {
	db := config.GetDB()
	var results []*Event
	err := db.WithContext(ctx).Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
