package services

import (
	"context"
	"testing"
	"time"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/shared"
)

func newTestAutoBlock() (*AutoBlockService, *MemoryCounterStore) {
	store := NewMemoryCounterStore()
	svc := &AutoBlockService{store: store, blockDuration: time.Minute}
	return svc, store
}

func trippedEvent(rule, discriminator string) dto.RuleTrippedEvent {
	return dto.RuleTrippedEvent{
		RuleName:      rule,
		Discriminator: discriminator,
		MatchType:     "throttle",
		OccurredAt:    time.Now(),
	}
}

func TestHandleRuleTrippedWritesBlockFlag(t *testing.T) {
	svc, store := newTestAutoBlock()

	svc.HandleRuleTripped(trippedEvent(RuleExcessiveRequests, "visitor:fp-1"))

	blocked, err := store.ReadFlag(context.Background(), BlockFlagKey(shared.IdentifierTypeVisitor, "fp-1"))
	if err != nil {
		t.Fatalf("ReadFlag: %v", err)
	}
	if !blocked {
		t.Error("block flag not written after excessive-requests trip")
	}
}

func TestHandleRuleTrippedIgnoresOtherRules(t *testing.T) {
	svc, store := newTestAutoBlock()

	svc.HandleRuleTripped(trippedEvent(RuleChatFingerprint, "visitor:fp-1"))
	svc.HandleRuleTripped(trippedEvent(RuleLoginsPerEmail, "user@example.com"))

	blocked, err := store.ReadFlag(context.Background(), BlockFlagKey(shared.IdentifierTypeVisitor, "fp-1"))
	if err != nil {
		t.Fatalf("ReadFlag: %v", err)
	}
	if blocked {
		t.Error("block flag written for a rule that should not auto-block")
	}
}

func TestHandleRuleTrippedIgnoresOtherMatchTypes(t *testing.T) {
	svc, store := newTestAutoBlock()

	event := trippedEvent(RuleExcessiveRequests, "visitor:fp-1")
	event.MatchType = "blocklist"
	svc.HandleRuleTripped(event)

	blocked, _ := store.ReadFlag(context.Background(), BlockFlagKey(shared.IdentifierTypeVisitor, "fp-1"))
	if blocked {
		t.Error("block flag written for non-throttle match type")
	}
}

func TestHandleRuleTrippedMalformedDiscriminator(t *testing.T) {
	svc, store := newTestAutoBlock()

	tests := []string{
		"",
		"visitor:",
		"fp-1",
		"email:user@example.com",
	}

	for _, discriminator := range tests {
		svc.HandleRuleTripped(trippedEvent(RuleExcessiveRequests, discriminator))
	}

	for _, id := range []string{"", "fp-1", "email:user@example.com"} {
		blocked, _ := store.ReadFlag(context.Background(), BlockFlagKey(shared.IdentifierTypeVisitor, id))
		if blocked {
			t.Errorf("block flag written for malformed discriminator %q", id)
		}
	}
}

func TestHandleRuleTrippedRewriteIsIdempotent(t *testing.T) {
	svc, store := newTestAutoBlock()
	key := BlockFlagKey(shared.IdentifierTypeVisitor, "fp-1")

	svc.HandleRuleTripped(trippedEvent(RuleExcessiveRequests, "visitor:fp-1"))
	svc.HandleRuleTripped(trippedEvent(RuleExcessiveRequests, "visitor:fp-1"))

	blocked, err := store.ReadFlag(context.Background(), key)
	if err != nil {
		t.Fatalf("ReadFlag: %v", err)
	}
	if !blocked {
		t.Error("flag missing after repeated trips")
	}
}
