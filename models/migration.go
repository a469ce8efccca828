package models

import (
	"log"

	"github.com/crisisops/relief_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Event{},
		&Organization{},
		&User{},
		&Site{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
