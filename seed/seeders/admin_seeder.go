package seeders

import (
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/answerhive/answerhive_api/model"
	"github.com/answerhive/answerhive_api/shared"
)

// AdminSeeder creates the operator account used by the hosted console.
type AdminSeeder struct {
	db *gorm.DB
}

func NewAdminSeeder(db *gorm.DB) *AdminSeeder {
	return &AdminSeeder{db: db}
}

func (s *AdminSeeder) SeedAdmin() error {
	email := os.Getenv("SEED_ADMIN_EMAIL")
	if email == "" {
		email = "admin@answerhive.io"
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "changeme123"
	}

	var existing model.User
	if err := s.db.Where("email = ?", email).First(&existing).Error; err == nil {
		log.Println("Admin user already exists, skipping admin seeding")
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	admin := model.User{
		ID:                        id.String(),
		Email:                     email,
		PasswordHash:              string(hashedPassword),
		Role:                      model.RoleAdmin,
		SubscriptionStatus:        shared.SubscriptionActive,
		QueriesRemaining:          model.PlanQueryLimits[shared.PlanTest],
		EmailNotificationsEnabled: true,
		CreatedAt:                 time.Now(),
		UpdatedAt:                 time.Now(),
	}

	if err := s.db.Create(&admin).Error; err != nil {
		log.Printf("Error creating admin user: %v", err)
		return err
	}

	log.Printf("Created admin user: %s", admin.Email)
	return nil
}
