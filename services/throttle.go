package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/shared"
)

// Rule is pure data: a named fixed-window limit plus the function that
// extracts its discriminator from a request. A blank discriminator means the
// rule does not apply to that request, never "match everything".
type Rule struct {
	Name          string
	Limit         int64
	Period        time.Duration
	Discriminator func(req *RequestInfo) string
}

const (
	RuleLoginsPerEmail    = "logins/email"
	RuleSignupsPerEmail   = "signups/email"
	RuleChatFingerprint   = "chat/fingerprint"
	RuleExcessiveRequests = "chat/excessive"

	throttledMessage = "Too many requests. Please try again later."
)

// ThrottleEngine evaluates an ordered rule set against a shared counter
// store. The engine itself is stateless: all counting lives in the store, so
// any number of instances stay consistent as long as they share it.
type ThrottleEngine struct {
	rules []Rule
	store CounterStore
	now   func() time.Time

	mu        sync.RWMutex
	listeners []func(dto.RuleTrippedEvent)
}

func NewThrottleEngine(store CounterStore, rules []Rule) *ThrottleEngine {
	return &ThrottleEngine{
		rules: rules,
		store: store,
		now:   time.Now,
	}
}

// OnRuleTripped registers a listener for limit-exceeded events. Listeners
// are wired explicitly at startup, not through ambient subscriptions.
func (e *ThrottleEngine) OnRuleTripped(fn func(dto.RuleTrippedEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *ThrottleEngine) Rules() []Rule {
	return e.rules
}

// windowKey buckets the counter by floor(now/period): fixed-window
// semantics, counts reset at period boundaries.
func windowKey(rule Rule, discriminator string, now time.Time) string {
	periodSecs := int64(rule.Period / time.Second)
	bucket := now.Unix() / periodSecs
	return fmt.Sprintf("throttle:%s:%d:%s", rule.Name, bucket, discriminator)
}

// Evaluate runs every applicable rule. Counters for all applicable rules
// increment independently; the first rule whose post-increment count exceeds
// its limit determines the rejection. Limits are inclusive: the (limit+1)th
// request within a window is the first one rejected.
func (e *ThrottleEngine) Evaluate(ctx context.Context, req *RequestInfo) (*dto.RateLimitInfo, error) {
	now := e.now()

	var tripped *Rule
	var trippedDiscriminator string
	remaining := int64(-1)
	var resetTime *time.Time

	for i := range e.rules {
		rule := e.rules[i]
		discriminator := rule.Discriminator(req)
		if discriminator == "" {
			continue
		}

		count, err := e.store.Increment(ctx, windowKey(rule, discriminator, now), rule.Period)
		if err != nil {
			// A store outage must not take the API down with it.
			log.WithError(err).WithField("rule", rule.Name).Error("Throttle store increment failed")
			continue
		}

		if count > rule.Limit && tripped == nil {
			tripped = &e.rules[i]
			trippedDiscriminator = discriminator
		}

		if left := rule.Limit - count; remaining < 0 || left < remaining {
			if left < 0 {
				left = 0
			}
			remaining = left
			reset := windowEnd(rule.Period, now)
			resetTime = &reset
		}
	}

	if tripped != nil {
		e.emit(dto.RuleTrippedEvent{
			RuleName:      tripped.Name,
			Discriminator: trippedDiscriminator,
			MatchType:     "throttle",
			OccurredAt:    now,
		})
		return &dto.RateLimitInfo{
			Allowed:   false,
			Rule:      tripped.Name,
			Remaining: 0,
			ResetTime: resetTime,
		}, nil
	}

	return &dto.RateLimitInfo{
		Allowed:   true,
		Remaining: remaining,
		ResetTime: resetTime,
	}, nil
}

func windowEnd(period time.Duration, now time.Time) time.Time {
	periodSecs := int64(period / time.Second)
	bucket := now.Unix() / periodSecs
	return time.Unix((bucket+1)*periodSecs, 0)
}

func (e *ThrottleEngine) emit(event dto.RuleTrippedEvent) {
	e.mu.RLock()
	listeners := e.listeners
	e.mu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// DefaultRules mirrors production behavior: per-email limits on the auth
// endpoints, a per-minute fingerprint limit on the chat endpoint, and the
// slower excessive-requests rule whose trips feed the auto-block listener.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   RuleLoginsPerEmail,
			Limit:  6,
			Period: 60 * time.Second,
			Discriminator: func(req *RequestInfo) string {
				if req.Path == "/api/v1/auth/login" && req.Method == fiber.MethodPost {
					return req.Email()
				}
				return ""
			},
		},
		{
			Name:   RuleSignupsPerEmail,
			Limit:  6,
			Period: 60 * time.Second,
			Discriminator: func(req *RequestInfo) string {
				if req.Path == "/api/v1/auth/register" && req.Method == fiber.MethodPost {
					return req.Email()
				}
				return ""
			},
		},
		{
			Name:          RuleChatFingerprint,
			Limit:         20,
			Period:        60 * time.Second,
			Discriminator: chatVisitorDiscriminator,
		},
		{
			Name:          RuleExcessiveRequests,
			Limit:         30,
			Period:        5 * time.Minute,
			Discriminator: chatVisitorDiscriminator,
		},
	}
}

func chatVisitorDiscriminator(req *RequestInfo) string {
	if strings.HasPrefix(req.Path, "/api/v1/chat") && req.Method == fiber.MethodPost {
		if visitorID := req.VisitorID(); visitorID != "" {
			return shared.IdentifierTypeVisitor + ":" + visitorID
		}
	}
	return ""
}

// ThrottleService wires the engine into the service graph and exposes it as
// fiber middleware.
type ThrottleService struct {
	appContext.DefaultService

	engine *ThrottleEngine
	store  CounterStore
}

const THROTTLE_SVC = "throttle_svc"

func (svc ThrottleService) Id() string {
	return THROTTLE_SVC
}

func (svc *ThrottleService) Start() error {
	svc.store = svc.resolveStore()
	svc.engine = NewThrottleEngine(svc.store, DefaultRules())
	return nil
}

// resolveStore picks the counter store backend. Redis is the default; the
// memory store is only sound for a single instance.
func (svc *ThrottleService) resolveStore() CounterStore {
	if os.Getenv("RATE_LIMIT_STORE") == "memory" {
		log.Warn("Rate limit store running in-memory; not safe beyond a single instance")
		return NewMemoryCounterStore()
	}

	redisSvc := svc.Service(REDIS_SVC).(*RedisService)
	return NewRedisCounterStore(redisSvc.GetClient(), "answerhive")
}

func (svc *ThrottleService) Engine() *ThrottleEngine {
	return svc.engine
}

func (svc *ThrottleService) Store() CounterStore {
	return svc.store
}

// Middleware evaluates the rule set on every request. Rules self-select by
// path/method through their discriminators, so this mounts once, app-wide.
func (svc *ThrottleService) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		info, err := svc.engine.Evaluate(c.Context(), NewRequestInfo(c))
		if err != nil {
			log.WithError(err).Error("Throttle evaluation error")
			return c.Next()
		}

		svc.addRateLimitHeaders(c, info)

		if !info.Allowed {
			recordThrottleRejection(info.Rule)
			return shared.RawJSON(c, http.StatusTooManyRequests, dto.ChatErrorResponse{
				Error: throttledMessage,
			})
		}

		return c.Next()
	}
}

func (svc *ThrottleService) addRateLimitHeaders(c *fiber.Ctx, info *dto.RateLimitInfo) {
	if info == nil {
		return
	}

	if info.Remaining >= 0 {
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(info.Remaining, 10))
	}

	if info.ResetTime != nil {
		c.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
		if !info.Allowed {
			retryAfter := int(time.Until(*info.ResetTime).Seconds())
			if retryAfter > 0 {
				c.Set("Retry-After", strconv.Itoa(retryAfter))
			}
		}
	}
}

func (svc *ThrottleService) Stats() dto.ThrottleStatsResponse {
	rules := make([]dto.RuleStats, 0, len(svc.engine.Rules()))
	for _, rule := range svc.engine.Rules() {
		rules = append(rules, dto.RuleStats{
			Name:   rule.Name,
			Limit:  rule.Limit,
			Period: int(rule.Period / time.Second),
		})
	}
	return dto.ThrottleStatsResponse{
		Rules:     rules,
		Timestamp: time.Now(),
	}
}
