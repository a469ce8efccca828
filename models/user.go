package models

import (
	"context"
	"errors"
	"time"

	"github.com/crisisops/relief_backend/config"
	"github.com/crisisops/relief_backend/utils"
)

// User is the person who entered a work order. Authentication lives
// outside this service; the registry only keeps the reference for audit.
type User struct {
	ID             int       `gorm:"primary_key" json:"id"`
	Name           string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email          string    `gorm:"size:100;index" json:"email"`
	OrganizationId int       `gorm:"index" json:"organization_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email"`
	OrganizationId int    `json:"organization_id"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	if input.Email != "" {
		if !utils.IsValidEmail(input.Email) {
			return nil, errors.New("invalid email")
		}
		if err := utils.ValidateUnique[User](ctx, "email", input.Email, 0); err != nil {
			return nil, err
		}
	}
	if input.OrganizationId != 0 {
		if err := utils.ValidateResourceId[Organization](ctx, input.OrganizationId); err != nil {
			return nil, err
		}
	}

	user := User{
		Name:           input.Name,
		Email:          input.Email,
		OrganizationId: input.OrganizationId,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return utils.FetchModel[User](ctx, id)
}
