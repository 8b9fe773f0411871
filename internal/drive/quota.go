package drive

import (
	"context"
	"fmt"

	"github.com/abduss/driveingest/internal/auth"
	"github.com/abduss/driveingest/internal/instance"
	"github.com/google/uuid"
)

// QuotaDecision is the outcome of checking a new file against an account's ceiling.
type QuotaDecision int

const (
	// QuotaAllow means the file fits.
	QuotaAllow QuotaDecision = iota
	// QuotaReject means a local account is full.
	QuotaReject
	// QuotaEvict means a remote account is full and its oldest file should go.
	QuotaEvict
)

func (d QuotaDecision) String() string {
	switch d {
	case QuotaAllow:
		return "allow"
	case QuotaReject:
		return "reject"
	case QuotaEvict:
		return "evict"
	default:
		return "unknown"
	}
}

type usageStore interface {
	UsageOf(ctx context.Context, accountID uuid.UUID) (int64, error)
}

type settingsSource interface {
	Fetch(ctx context.Context) (instance.Settings, error)
}

// QuotaPolicy compares an account's usage plus a new file against the
// instance-wide ceiling for its class.
type QuotaPolicy struct {
	usage    usageStore
	settings settingsSource
}

// NewQuotaPolicy constructs the policy.
func NewQuotaPolicy(usage usageStore, settings settingsSource) *QuotaPolicy {
	return &QuotaPolicy{usage: usage, settings: settings}
}

// Check decides what happens when account stores size more bytes.
func (p *QuotaPolicy) Check(ctx context.Context, account auth.Account, size int64) (QuotaDecision, error) {
	settings, err := p.settings.Fetch(ctx)
	if err != nil {
		return QuotaAllow, fmt.Errorf("load instance settings: %w", err)
	}
	usage, err := p.usage.UsageOf(ctx, account.ID)
	if err != nil {
		return QuotaAllow, err
	}

	ceiling := settings.LocalCapacityBytes()
	if account.IsRemote() {
		ceiling = settings.RemoteCapacityBytes()
	}
	if usage+size <= ceiling {
		return QuotaAllow, nil
	}
	if account.IsRemote() {
		return QuotaEvict, nil
	}
	return QuotaReject, nil
}
