package booking

const (
	// CheckoutWindowSeconds is the budget granted on entering Checkout.
	CheckoutWindowSeconds = 595
	// BillingWindowSeconds is the budget granted on entering Billing.
	BillingWindowSeconds = 477
)

// BudgetPolicy decides how many seconds a timed step gets on entry.
// carried is what was left on the last window the session ran, or -1 when
// none has run since the selection started.
type BudgetPolicy interface {
	Allot(step Step, carried int) int
}

// PerStepBudget grants every timed step its own fresh budget on each
// entry; nothing carries over between steps.
type PerStepBudget map[Step]int

// DefaultBudget is the per-step budget of 595s for Checkout and 477s for
// Billing.
func DefaultBudget() PerStepBudget {
	return PerStepBudget{
		StepCheckout:       CheckoutWindowSeconds,
		StepBillingDetails: BillingWindowSeconds,
	}
}

func (b PerStepBudget) Allot(step Step, _ int) int { return b[step] }

// CumulativeBudget grants Total seconds once per selection; every later
// timed step continues from whatever was left, so bouncing between
// Checkout and Billing never refreshes the clock.
type CumulativeBudget struct {
	Total int
}

func (b CumulativeBudget) Allot(_ Step, carried int) int {
	if carried < 0 {
		return b.Total
	}
	return carried
}

// ExpiryPolicy decides what happens when a session window runs out.
type ExpiryPolicy int

const (
	// ExpiryReturnToOrigin clears the selection and returns to the catalog
	// page the funnel was entered from.
	ExpiryReturnToOrigin ExpiryPolicy = iota
	// ExpiryHold keeps the user on the step with the selection intact but
	// blocks moving forward until they go back.
	ExpiryHold
)

// ParseExpiryPolicy maps a config value to a policy; unknown values fall
// back to ExpiryReturnToOrigin.
func ParseExpiryPolicy(s string) ExpiryPolicy {
	if s == "hold" {
		return ExpiryHold
	}
	return ExpiryReturnToOrigin
}

func (e ExpiryPolicy) String() string {
	if e == ExpiryHold {
		return "hold"
	}
	return "origin"
}
