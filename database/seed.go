package database

import (
	"fmt"
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/utils/auth"
)

// RunSeeds creates the bootstrap admin account. Teachers, classes and
// students are created through the API afterwards.
func RunSeeds(db *gorm.DB) error {
	adminNo := os.Getenv("ADMIN_NO")
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")

	if adminNo == "" || password == "" {
		log.Println("ADMIN_NO or ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}
	if username == "" {
		username = adminNo
	}

	var count int64
	if err := db.Model(&model.Admin{}).Where("admin_no = ?", adminNo).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Printf("Admin %s already exists, skipping", adminNo)
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("invalid admin password: %w", err)
	}

	admin := &model.Admin{
		AdminNo:      adminNo,
		Username:     username,
		PasswordHash: hash,
		Name:         "Administrator",
		Status:       model.StatusActive,
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("Created admin account %s", adminNo)
	return nil
}
