package services

import (
	"errors"
	"os"
	"strings"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/model"
	"github.com/answerhive/answerhive_api/shared"
)

// AuthService backs the owner console: account creation and JWT login.
// End-user visitors never authenticate; they are identified by fingerprint.
type AuthService struct {
	appContext.DefaultService

	postgresSvc *PostgresService
	jwtSvc      *JWTService

	priceCodes map[string]string
}

const AUTH_SVC = "auth_svc"

func (svc AuthService) Id() string {
	return AUTH_SVC
}

func (svc *AuthService) Configure(ctx *appContext.Context) error {
	svc.priceCodes = PlanPriceCodes()
	return svc.DefaultService.Configure(ctx)
}

func (svc *AuthService) Start() error {
	svc.postgresSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.jwtSvc = svc.Service(JWT_SVC).(*JWTService)
	return nil
}

// PlanPriceCodes maps the payment provider's price codes to plan names.
// Codes differ per environment, so they come from env vars.
func PlanPriceCodes() map[string]string {
	codes := map[string]string{}
	for _, plan := range []struct {
		env  string
		name string
	}{
		{"PRICE_CODE_TEST", shared.PlanTest},
		{"PRICE_CODE_BASIC", shared.PlanBasic},
		{"PRICE_CODE_STANDARD", shared.PlanStandard},
		{"PRICE_CODE_PRO", shared.PlanPro},
	} {
		if code := os.Getenv(plan.env); code != "" {
			codes[code] = plan.name
		}
	}
	return codes
}

func (svc *AuthService) PriceCodes() map[string]string {
	return svc.priceCodes
}

func (svc *AuthService) Register(req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := svc.postgresSvc.GetUserByEmail(email); err == nil {
		return nil, shared.NewBadRequestError(nil, "Email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := svc.postgresSvc.CreateUser(&model.User{
		Email:                     email,
		PasswordHash:              string(hash),
		Role:                      model.RoleUser,
		SubscriptionStatus:        shared.SubscriptionIncomplete,
		EmailNotificationsEnabled: true,
	})
	if err != nil {
		return nil, err
	}

	log.WithField("user_id", user.ID).Info("User registered")

	return &dto.RegisterResponse{
		UserID: user.ID,
		Email:  user.Email,
	}, nil
}

func (svc *AuthService) Login(req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := svc.postgresSvc.GetUserByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewUnauthorizedError(err, "Invalid email or password")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, shared.NewUnauthorizedError(err, "Invalid email or password")
	}

	token, expiresAt, err := svc.jwtSvc.ToJWT(user.ID)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User: dto.UserInfo{
			ID:                 user.ID,
			Email:              user.Email,
			Role:               user.Role,
			PlanName:           user.PlanName(svc.priceCodes),
			SubscriptionStatus: user.SubscriptionStatus,
			QueriesRemaining:   user.QueriesRemaining,
		},
	}, nil
}
