package services

import (
	"context"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/shared"
)

const defaultBlockDuration = 24 * time.Hour

// AutoBlockService promotes visitors who trip the excessive-requests rule
// into the persistent block set. It is an explicit listener wired onto the
// throttle engine at startup; the block flag self-expires through the store's
// TTL, so there is no cleanup job.
type AutoBlockService struct {
	appContext.DefaultService

	store         CounterStore
	blockDuration time.Duration
}

const AUTO_BLOCK_SVC = "auto_block_svc"

func (svc AutoBlockService) Id() string {
	return AUTO_BLOCK_SVC
}

func (svc *AutoBlockService) Start() error {
	throttleSvc := svc.Service(THROTTLE_SVC).(*ThrottleService)
	svc.store = throttleSvc.Store()
	svc.blockDuration = defaultBlockDuration

	throttleSvc.Engine().OnRuleTripped(svc.HandleRuleTripped)
	return nil
}

// HandleRuleTripped filters for the excessive-requests rule and writes the
// block flag. Re-triggering for an already blocked visitor rewrites the flag,
// so the expiry is always the most recent write, not cumulative.
func (svc *AutoBlockService) HandleRuleTripped(event dto.RuleTrippedEvent) {
	if event.RuleName != RuleExcessiveRequests || event.MatchType != "throttle" {
		return
	}

	visitorID := strings.TrimPrefix(event.Discriminator, shared.IdentifierTypeVisitor+":")
	if visitorID == "" || visitorID == event.Discriminator {
		// Never block a blank or malformed identifier.
		log.WithField("discriminator", event.Discriminator).
			Warn("Auto-block skipped: no visitor identifier in discriminator")
		return
	}

	key := BlockFlagKey(shared.IdentifierTypeVisitor, visitorID)
	if err := svc.store.WriteFlag(context.Background(), key, svc.blockDuration); err != nil {
		log.WithError(err).WithField("visitor_id", visitorID).Error("Failed to write block flag")
		return
	}

	recordAutoBlock()
	log.WithFields(log.Fields{
		"visitor_id": visitorID,
		"duration":   svc.blockDuration.String(),
		"rule":       event.RuleName,
	}).Info("Blocked visitor due to excessive requests")
}
