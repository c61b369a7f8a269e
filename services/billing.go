package services

import (
	"errors"
	"strings"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/model"
	"github.com/answerhive/answerhive_api/shared"
)

// BillingService consumes the payment provider's webhook. The subscription
// state machine lives entirely on the provider side; this only mirrors the
// two outcomes the quota logic cares about.
type BillingService struct {
	appContext.DefaultService

	postgresSvc *PostgresService
	emailSvc    *EmailService

	priceCodes map[string]string
}

const BILLING_SVC = "billing_svc"

func (svc BillingService) Id() string {
	return BILLING_SVC
}

func (svc *BillingService) Configure(ctx *appContext.Context) error {
	svc.priceCodes = PlanPriceCodes()
	return svc.DefaultService.Configure(ctx)
}

func (svc *BillingService) Start() error {
	svc.postgresSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.emailSvc = svc.Service(EMAIL_SVC).(*EmailService)
	return nil
}

// HandleEvent applies one webhook event. Unknown event types are
// acknowledged without action so the provider does not retry them forever.
func (svc *BillingService) HandleEvent(event dto.BillingEvent) error {
	user, err := svc.postgresSvc.GetUserByEmail(strings.ToLower(event.CustomerEmail))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NewNotFoundError(err, "No account for customer email")
		}
		return err
	}

	switch event.Type {
	case dto.BillingPaymentSucceeded:
		return svc.handlePaymentSucceeded(user, event)
	case dto.BillingPaymentFailed:
		return svc.handlePaymentFailed(user)
	default:
		log.WithField("event_type", event.Type).Debug("Ignoring billing event")
		return nil
	}
}

func (svc *BillingService) handlePaymentSucceeded(user *model.User, event dto.BillingEvent) error {
	planCode := event.PlanCode
	if planCode == "" {
		planCode = user.PlanCode
	}

	if err := svc.postgresSvc.UpdateSubscription(user.ID, planCode, shared.SubscriptionActive); err != nil {
		return err
	}

	user.PlanCode = planCode
	planName := user.PlanName(svc.priceCodes)
	limit := model.PlanQueryLimits[planName]

	if err := svc.postgresSvc.ResetQueries(user.ID, limit); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"user_id": user.ID,
		"plan":    planName,
		"queries": limit,
	}).Info("Payment succeeded, quota reset")

	go func() {
		if err := svc.emailSvc.SendPaymentSucceeded(user, planName, limit); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Warn("Failed to send payment succeeded mail")
		}
	}()

	return nil
}

func (svc *BillingService) handlePaymentFailed(user *model.User) error {
	if err := svc.postgresSvc.UpdateSubscription(user.ID, user.PlanCode, shared.SubscriptionInactive); err != nil {
		return err
	}

	log.WithField("user_id", user.ID).Info("Payment failed, subscription marked inactive")

	go func() {
		if err := svc.emailSvc.SendPaymentFailed(user); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Warn("Failed to send payment failed mail")
		}
	}()

	return nil
}
