package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/ticket-funnel/internal/booking"
	"github.com/iliyamo/ticket-funnel/internal/pricing"
)

var validate = validator.New()

// FunnelConfig tunes the purchase flow.
type FunnelConfig struct {
	FeeRate         float64 `validate:"gte=0,lte=1"`
	CheckoutWindow  int     `validate:"gt=0"` // seconds
	BillingWindow   int     `validate:"gt=0"` // seconds
	BudgetPolicy    string  `validate:"oneof=per_step cumulative"`
	CumulativeTotal int     `validate:"gt=0"` // seconds, used by the cumulative policy
	ExpiryPolicy    string  `validate:"oneof=origin hold"`

	SessionIdleTTL       time.Duration `validate:"gt=0"`
	SessionSweepInterval time.Duration `validate:"gt=0"`

	PaymentDelay        time.Duration `validate:"gte=0"`
	PaymentDeclineAbove int64         `validate:"gte=0"` // grand totals above this are declined; 0 disables
	ChargeTimeout       time.Duration `validate:"gt=0"`
	PaymentWait         time.Duration `validate:"gte=0"` // how long the payment endpoint waits before answering 202
}

// LoadFunnelConfig reads the funnel settings, falling back to the
// production defaults.
func LoadFunnelConfig() (FunnelConfig, error) {
	cfg := FunnelConfig{
		FeeRate:              envFloat("FEE_RATE", pricing.DefaultFeeRate),
		CheckoutWindow:       envInt("CHECKOUT_WINDOW_SECONDS", booking.CheckoutWindowSeconds),
		BillingWindow:        envInt("BILLING_WINDOW_SECONDS", booking.BillingWindowSeconds),
		BudgetPolicy:         envStr("BUDGET_POLICY", "per_step"),
		ExpiryPolicy:         envStr("EXPIRY_POLICY", "origin"),
		SessionIdleTTL:       envDur("SESSION_IDLE_TTL", 30*time.Minute),
		SessionSweepInterval: envDur("SESSION_SWEEP_INTERVAL", time.Minute),
		PaymentDelay:         envDur("PAYMENT_DELAY", 2*time.Second),
		PaymentDeclineAbove:  int64(envInt("PAYMENT_DECLINE_ABOVE", 0)),
		ChargeTimeout:        envDur("PAYMENT_CHARGE_TIMEOUT", booking.DefaultChargeTimeout),
		PaymentWait:          envDur("PAYMENT_WAIT", 10*time.Second),
	}
	cfg.CumulativeTotal = envInt("CUMULATIVE_WINDOW_SECONDS", cfg.CheckoutWindow+cfg.BillingWindow)
	if err := validate.Struct(cfg); err != nil {
		return FunnelConfig{}, fmt.Errorf("invalid funnel config: %w", err)
	}
	return cfg, nil
}

// Budget returns the window budget policy the config names.
func (c FunnelConfig) Budget() booking.BudgetPolicy {
	if c.BudgetPolicy == "cumulative" {
		return booking.CumulativeBudget{Total: c.CumulativeTotal}
	}
	return booking.PerStepBudget{
		booking.StepCheckout:       c.CheckoutWindow,
		booking.StepBillingDetails: c.BillingWindow,
	}
}

// Expiry returns the expiry policy the config names.
func (c FunnelConfig) Expiry() booking.ExpiryPolicy {
	return booking.ParseExpiryPolicy(c.ExpiryPolicy)
}

func envFloat(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
