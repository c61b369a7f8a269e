package services

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/shared"
)

const (
	PredicatePayloadSanity       = "payload_sanity"
	PredicateFingerprintRequired = "fingerprint_required"
	PredicateDynamicBlock        = "dynamic_block"

	fingerprintRequiredMessage = "JavaScript must be enabled to use this service. FingerprintJS is required for security purposes."
	accessDeniedMessage        = "Access denied. Your access has been blocked due to suspicious activity."

	chatPathPrefix = "/api/v1/chat"
)

var (
	suspiciousSQLPattern  = regexp.MustCompile(`(?i)(%27)|(')|(--)|(%23)|(#)`)
	pathTraversalPattern  = regexp.MustCompile(`\.\./`)
	payloadExemptPrefixes = []string{"/api/v1/admin/documents"}
)

// BlockFlagKey names the store entry the auto-block listener writes and the
// dynamic predicate reads. Identifier types come from shared.IdentifierType*.
func BlockFlagKey(identifierType, identifier string) string {
	return fmt.Sprintf("block:%s:%s", identifierType, identifier)
}

// BlockDecision is what the engine returns for a rejected request. The
// message differs by predicate so a blocked client can tell "enable
// JavaScript" apart from "you are blocked" without internal rule names
// leaking.
type BlockDecision struct {
	Predicate string
	Message   string
}

// BlocklistEngine runs its predicates in a fixed order; the first match wins.
// Order matters: payload sanity is cheapest and catches drive-by scanners,
// the fingerprint gate runs before the store lookup so flag reads only happen
// for requests that carry an identifier at all.
type BlocklistEngine struct {
	store CounterStore
}

func NewBlocklistEngine(store CounterStore) *BlocklistEngine {
	return &BlocklistEngine{store: store}
}

func (e *BlocklistEngine) Evaluate(ctx context.Context, req *RequestInfo) (*BlockDecision, error) {
	if e.matchesPayloadSanity(req) {
		return &BlockDecision{Predicate: PredicatePayloadSanity, Message: accessDeniedMessage}, nil
	}

	if e.matchesFingerprintRequired(req) {
		return &BlockDecision{Predicate: PredicateFingerprintRequired, Message: fingerprintRequiredMessage}, nil
	}

	blocked, err := e.matchesDynamicBlock(ctx, req)
	if err != nil {
		return nil, err
	}
	if blocked {
		return &BlockDecision{Predicate: PredicateDynamicBlock, Message: accessDeniedMessage}, nil
	}

	return nil, nil
}

// matchesPayloadSanity scans query and top-level body values for SQL
// meta-characters and path traversal sequences. Upload endpoints are exempt,
// their payloads legitimately contain these bytes and are validated in the
// handler instead.
func (e *BlocklistEngine) matchesPayloadSanity(req *RequestInfo) bool {
	path := strings.ToLower(req.Path)
	for _, prefix := range payloadExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}

	for _, value := range req.ParamValues() {
		if suspiciousSQLPattern.MatchString(value) || pathTraversalPattern.MatchString(value) {
			return true
		}
	}
	return false
}

// matchesFingerprintRequired rejects chat submissions whose body carries no
// device fingerprint at all. This is distinct from "fingerprint present but
// blocked", which the dynamic predicate handles.
func (e *BlocklistEngine) matchesFingerprintRequired(req *RequestInfo) bool {
	if !strings.HasPrefix(req.Path, chatPathPrefix) || req.Method != fiber.MethodPost {
		return false
	}
	return req.VisitorID() == ""
}

func (e *BlocklistEngine) matchesDynamicBlock(ctx context.Context, req *RequestInfo) (bool, error) {
	if !strings.HasPrefix(req.Path, chatPathPrefix) {
		return false, nil
	}

	visitorID := req.VisitorID()
	if visitorID == "" {
		return false, nil
	}

	return e.store.ReadFlag(ctx, BlockFlagKey(shared.IdentifierTypeVisitor, visitorID))
}

// BlocklistService runs the engine as fiber middleware, mounted before the
// throttle middleware so blocked visitors never touch the counters.
type BlocklistService struct {
	appContext.DefaultService

	engine *BlocklistEngine
	store  CounterStore
}

const BLOCKLIST_SVC = "blocklist_svc"

func (svc BlocklistService) Id() string {
	return BLOCKLIST_SVC
}

// Start shares the throttle service's counter store so block flags and
// throttle counters always live in the same backend.
func (svc *BlocklistService) Start() error {
	throttleSvc := svc.Service(THROTTLE_SVC).(*ThrottleService)
	svc.store = throttleSvc.Store()
	svc.engine = NewBlocklistEngine(svc.store)
	return nil
}

func (svc *BlocklistService) Engine() *BlocklistEngine {
	return svc.engine
}

func (svc *BlocklistService) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := NewRequestInfo(c)

		decision, err := svc.engine.Evaluate(c.Context(), req)
		if err != nil {
			// Store outage: fail open, the throttle layer still applies.
			log.WithError(err).Error("Blocklist evaluation error")
			return c.Next()
		}

		if decision != nil {
			recordBlocklistHit(decision.Predicate)
			log.WithFields(log.Fields{
				"predicate": decision.Predicate,
				"path":      req.Path,
				"ip":        req.IP,
			}).Warn("Request blocked")
			return shared.RawJSON(c, http.StatusForbidden, dto.ChatErrorResponse{
				Error: decision.Message,
			})
		}

		return c.Next()
	}
}

// Block writes a manual block flag, used by the admin console.
func (svc *BlocklistService) Block(ctx context.Context, identifierType, identifier string, ttl time.Duration) error {
	return svc.store.WriteFlag(ctx, BlockFlagKey(identifierType, identifier), ttl)
}

// Unblock clears a block flag before its TTL runs out.
func (svc *BlocklistService) Unblock(ctx context.Context, identifierType, identifier string) error {
	return svc.store.DeleteFlag(ctx, BlockFlagKey(identifierType, identifier))
}

// IsBlocked reports whether a flag currently exists for the identifier.
func (svc *BlocklistService) IsBlocked(ctx context.Context, identifierType, identifier string) (bool, error) {
	return svc.store.ReadFlag(ctx, BlockFlagKey(identifierType, identifier))
}
