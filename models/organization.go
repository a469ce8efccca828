package models

import (
	"context"
	"time"

	"github.com/crisisops/relief_backend/config"
	"github.com/crisisops/relief_backend/utils"
)

// Organization is a relief organization in the directory. A work order
// references it twice under different roles: the org that reported the
// site and the org that claimed the work.
type Organization struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name" binding:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrganization struct {
	Name string `json:"name" binding:"required"`
}

func CreateOrganization(ctx context.Context, input *NewOrganization) (*Organization, error) {

	if err := utils.ValidateUnique[Organization](ctx, "name", input.Name, 0); err != nil {
		return nil, err
	}

	org := Organization{
		Name: input.Name,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetOrganization looks up an organization by id, redis first then db.
// (may return RecordNotFound error)
func GetOrganization(ctx context.Context, id int) (*Organization, error) {

	result, err := utils.RetrieveRedis[Organization](id)
	if err != nil {
		return nil, err
	}

	if result == nil {
		result, err = utils.FetchModel[Organization](ctx, id)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedis[Organization](result, id); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// OrganizationNames loads the whole directory as an id -> display name
// map. Exports resolve org references through this map instead of issuing
// one lookup per row.
func OrganizationNames(ctx context.Context) (map[int]string, error) {
	db := config.GetDB()
	var orgs []*Organization
	if err := db.WithContext(ctx).Select("id", "name").Find(&orgs).Error; err != nil {
		return nil, err
	}
	names := make(map[int]string, len(orgs))
	for _, org := range orgs {
		names[org.ID] = org.Name
	}
	return names, nil
}
