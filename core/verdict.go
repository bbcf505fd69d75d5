package core

import "time"

// Device statuses reported in a valid verdict.
const (
	DeviceKnown           = "known"
	DeviceNewlyRegistered = "newly_registered"
)

// Verdict reason strings are part of the desktop client contract; the
// client matches on them to render actionable state.
const (
	ReasonTrialEnded         = "Trial period has ended"
	ReasonDeviceLimitReached = "Device limit reached"
)

// PlanSnapshot mirrors the plan fields the client renders.
type PlanSnapshot struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	MaxDevices     int            `json:"max_devices"`
	MaxAgents      int            `json:"max_agents"`
	MonthlyAICalls int64          `json:"monthly_ai_calls"`
	MonthlyTokens  int64          `json:"monthly_tokens"`
	Features       map[string]any `json:"features,omitempty"`
}

type BillingSnapshot struct {
	BillingCycle     string     `json:"billing_cycle"`
	IsTrial          bool       `json:"is_trial"`
	TrialEndsAt      *time.Time `json:"trial_ends_at,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

type UsageSnapshot struct {
	AICallsUsed       int64 `json:"ai_calls_used"`
	TokensUsed        int64 `json:"tokens_used"`
	UsageLimitReached bool  `json:"usage_limit_reached"`
}

type WalletSnapshot struct {
	TokenBalance int64 `json:"token_balance"`
	IsFrozen     bool  `json:"is_frozen"`
}

type DeviceSnapshot struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
}

// Verdict is the validity response, valid or not. It is always a normal
// 200-class payload: the client must be able to distinguish "license
// genuinely invalid" from "request malformed". Valid, LicenseStatus, and
// ServerTime are always present; Plan whenever available, so the client
// can render a plan name even on failure paths.
type Verdict struct {
	Valid         bool       `json:"valid"`
	LicenseStatus string     `json:"license_status"`
	Reason        string     `json:"reason,omitempty"`
	TrialEndsAt   *time.Time `json:"trial_ends_at,omitempty"`
	MaxDevices    *int       `json:"max_devices,omitempty"`
	ActiveDevices *int       `json:"active_devices,omitempty"`

	Plan    *PlanSnapshot    `json:"plan,omitempty"`
	Billing *BillingSnapshot `json:"billing,omitempty"`
	Usage   *UsageSnapshot   `json:"usage,omitempty"`
	Wallet  *WalletSnapshot  `json:"wallet,omitempty"`
	Device  *DeviceSnapshot  `json:"device,omitempty"`

	// ServerTime is the wall clock at response construction (ISO-8601),
	// used by the client for clock-skew correction.
	ServerTime string `json:"server_time"`
}

func planSnapshot(p *Plan) *PlanSnapshot {
	if p == nil {
		return nil
	}
	return &PlanSnapshot{
		ID:             p.ID,
		Name:           p.Name,
		MaxDevices:     p.MaxDevices,
		MaxAgents:      p.MaxAgents,
		MonthlyAICalls: p.MonthlyAICalls,
		MonthlyTokens:  p.MonthlyTokens,
		Features:       p.Features,
	}
}

// invalidVerdict builds the business-denial shape shared by the non-active,
// trial-expired, and quota-exceeded paths.
func (s *Service) invalidVerdict(status, reason string, plan *Plan) *Verdict {
	return &Verdict{
		Valid:         false,
		LicenseStatus: status,
		Reason:        reason,
		Plan:          planSnapshot(plan),
		ServerTime:    s.now().UTC().Format(time.RFC3339),
	}
}

// validVerdict assembles the full snapshot for an entitled, activated device.
func (s *Service) validVerdict(lic *License, plan *Plan, wallet *TokenWallet, deviceID, deviceStatus string) *Verdict {
	v := &Verdict{
		Valid:         true,
		LicenseStatus: lic.Status,
		Plan:          planSnapshot(plan),
		Billing: &BillingSnapshot{
			BillingCycle:     lic.BillingCycle,
			IsTrial:          lic.IsTrial,
			TrialEndsAt:      lic.TrialEndsAt,
			CurrentPeriodEnd: lic.CurrentPeriodEnd,
		},
		Usage: &UsageSnapshot{
			AICallsUsed:       lic.AICallsUsed,
			TokensUsed:        lic.TokensUsed,
			UsageLimitReached: lic.UsageLimitReached,
		},
		Device:     &DeviceSnapshot{DeviceID: deviceID, Status: deviceStatus},
		ServerTime: s.now().UTC().Format(time.RFC3339),
	}
	if wallet != nil {
		v.Wallet = &WalletSnapshot{TokenBalance: wallet.TokenBalance, IsFrozen: wallet.IsFrozen}
	}
	return v
}
