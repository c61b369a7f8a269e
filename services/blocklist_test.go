package services

import (
	"context"
	"testing"
	"time"

	"github.com/answerhive/answerhive_api/shared"
)

func chatRequest(body string) *RequestInfo {
	return &RequestInfo{Path: "/api/v1/chat", Method: "POST", body: []byte(body)}
}

func TestPayloadSanityPredicate(t *testing.T) {
	engine := NewBlocklistEngine(NewMemoryCounterStore())

	tests := []struct {
		name    string
		req     *RequestInfo
		blocked bool
	}{
		{
			name:    "sql quote in query param",
			req:     &RequestInfo{Path: "/api/v1/chat/abc/last_messages", Method: "GET", Query: map[string]string{"id": "x' OR 1=1"}},
			blocked: true,
		},
		{
			name:    "encoded quote in query param",
			req:     &RequestInfo{Path: "/api/v1/chat/abc/last_messages", Method: "GET", Query: map[string]string{"id": "%27foo"}},
			blocked: true,
		},
		{
			name:    "comment marker in body value",
			req:     chatRequest(`{"visitor_id":"fp-1","user_input":"drop -- tables"}`),
			blocked: true,
		},
		{
			name:    "path traversal in body value",
			req:     chatRequest(`{"visitor_id":"fp-1","user_input":"../../etc/passwd"}`),
			blocked: true,
		},
		{
			name:    "clean request passes",
			req:     chatRequest(`{"visitor_id":"fp-1","user_input":"what are your opening hours?"}`),
			blocked: false,
		},
		{
			name:    "upload path is exempt",
			req:     &RequestInfo{Path: "/api/v1/admin/documents", Method: "POST", Query: map[string]string{"name": "it's a file -- v2"}},
			blocked: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := engine.Evaluate(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if tc.blocked {
				if decision == nil {
					t.Fatal("request passed, want blocked")
				}
				if decision.Predicate != PredicatePayloadSanity {
					t.Errorf("Predicate = %q, want %q", decision.Predicate, PredicatePayloadSanity)
				}
				if decision.Message != accessDeniedMessage {
					t.Errorf("Message = %q, want access denied", decision.Message)
				}
			} else if decision != nil {
				t.Errorf("request blocked by %q, want pass", decision.Predicate)
			}
		})
	}
}

func TestFingerprintRequiredPredicate(t *testing.T) {
	engine := NewBlocklistEngine(NewMemoryCounterStore())

	tests := []struct {
		name    string
		req     *RequestInfo
		blocked bool
	}{
		{
			name:    "chat post without fingerprint",
			req:     chatRequest(`{"user_input":"hello"}`),
			blocked: true,
		},
		{
			name:    "chat post with blank fingerprint",
			req:     chatRequest(`{"visitor_id":"  ","user_input":"hello"}`),
			blocked: true,
		},
		{
			name:    "chat post with fingerprint",
			req:     chatRequest(`{"visitor_id":"fp-1","user_input":"hello"}`),
			blocked: false,
		},
		{
			name:    "chat get does not require fingerprint",
			req:     &RequestInfo{Path: "/api/v1/chat/abc/last_messages", Method: "GET"},
			blocked: false,
		},
		{
			name:    "other endpoints do not require fingerprint",
			req:     &RequestInfo{Path: "/api/v1/auth/login", Method: "POST", body: []byte(`{"email":"a@b.com"}`)},
			blocked: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := engine.Evaluate(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if tc.blocked {
				if decision == nil {
					t.Fatal("request passed, want blocked")
				}
				if decision.Predicate != PredicateFingerprintRequired {
					t.Errorf("Predicate = %q, want %q", decision.Predicate, PredicateFingerprintRequired)
				}
				if decision.Message != fingerprintRequiredMessage {
					t.Errorf("Message = %q, want fingerprint required", decision.Message)
				}
			} else if decision != nil {
				t.Errorf("request blocked by %q, want pass", decision.Predicate)
			}
		})
	}
}

func TestDynamicBlockPredicate(t *testing.T) {
	store := NewMemoryCounterStore()
	engine := NewBlocklistEngine(store)
	ctx := context.Background()

	if err := store.WriteFlag(ctx, BlockFlagKey(shared.IdentifierTypeVisitor, "fp-bad"), time.Minute); err != nil {
		t.Fatalf("WriteFlag: %v", err)
	}

	decision, err := engine.Evaluate(ctx, chatRequest(`{"visitor_id":"fp-bad","user_input":"hello"}`))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision == nil {
		t.Fatal("blocked visitor passed")
	}
	if decision.Predicate != PredicateDynamicBlock {
		t.Errorf("Predicate = %q, want %q", decision.Predicate, PredicateDynamicBlock)
	}
	if decision.Message != accessDeniedMessage {
		t.Errorf("Message = %q, want access denied", decision.Message)
	}

	decision, err = engine.Evaluate(ctx, chatRequest(`{"visitor_id":"fp-good","user_input":"hello"}`))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision != nil {
		t.Errorf("unblocked visitor rejected by %q", decision.Predicate)
	}
}

func TestPredicateOrder(t *testing.T) {
	store := NewMemoryCounterStore()
	engine := NewBlocklistEngine(store)
	ctx := context.Background()

	// Suspicious payload plus missing fingerprint: payload sanity runs first.
	decision, err := engine.Evaluate(ctx, chatRequest(`{"user_input":"x' --"}`))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision == nil || decision.Predicate != PredicatePayloadSanity {
		t.Fatalf("decision = %+v, want payload sanity first", decision)
	}
}

func TestBlockFlagKey(t *testing.T) {
	got := BlockFlagKey(shared.IdentifierTypeVisitor, "fp-1")
	want := "block:visitor:fp-1"
	if got != want {
		t.Errorf("BlockFlagKey = %q, want %q", got, want)
	}
}
