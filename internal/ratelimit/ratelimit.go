// Package ratelimit counts attempts per caller and action in fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// rate limited actions
const (
	ActionAuth          = "auth"
	ActionPaymentCreate = "payment_create"
	ActionPaymentVerify = "payment_verify"
	ActionRefund        = "refund"
	ActionWithdrawal    = "withdrawal"
	ActionTaskProof     = "task_proof"
	ActionSync          = "sync"
)

// Policy allows Max attempts per Window
type Policy struct {
	Max    int
	Window time.Duration
}

// Policies contains attempt budgets of actions
var Policies = map[string]Policy{
	ActionAuth:          {Max: 20, Window: 60 * time.Second},
	ActionPaymentCreate: {Max: 10, Window: 300 * time.Second},
	ActionPaymentVerify: {Max: 10, Window: 60 * time.Second},
	ActionRefund:        {Max: 5, Window: 300 * time.Second},
	ActionWithdrawal:    {Max: 5, Window: 300 * time.Second},
	ActionTaskProof:     {Max: 10, Window: 60 * time.Second},
	ActionSync:          {Max: 50, Window: 60 * time.Second},
}

// Key identifies counter, Scope is caller user id or address
type Key struct {
	Scope  string
	Action string
}

func (k Key) String() string {
	return fmt.Sprintf("ratelimit:%s:%s", k.Action, k.Scope)
}

// Result is outcome of one attempt
type Result struct {
	Allowed   bool
	Remaining int
	// RetryAfter is time left until the window resets
	RetryAfter time.Duration
}

// Limiter checks and counts one attempt
type Limiter interface {
	Allow(ctx context.Context, key Key, policy Policy) (Result, error)
}

func result(count int, policy Policy, ttl time.Duration) Result {
	return Result{
		Allowed:    count <= policy.Max,
		Remaining:  max(policy.Max-count, 0),
		RetryAfter: ttl,
	}
}
