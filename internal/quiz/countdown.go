package quiz

// DefaultBudget is the number of ticks a question stays on screen.
const DefaultBudget = 10

// Countdown is the per-question timer state. It is RUNNING while Remaining > 0
// and EXPIRED once it reaches zero.
type Countdown struct {
	Budget    int `json:"budget"`
	Remaining int `json:"remaining"`
}

// NewCountdown returns a running countdown; non-positive budgets fall back to DefaultBudget.
func NewCountdown(budget int) Countdown {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return Countdown{Budget: budget, Remaining: budget}
}

// Reset re-arms the countdown for a newly current question.
func (c Countdown) Reset() Countdown {
	c.Remaining = c.Budget
	return c
}

// Expired reports whether the budget is exhausted.
func (c Countdown) Expired() bool {
	return c.Remaining <= 0
}

// Tick consumes one time unit. expired is true only on the tick that reaches zero,
// so a single countdown signals at most one advance.
func (c Countdown) Tick() (next Countdown, expired bool) {
	if c.Expired() {
		return c, false
	}
	c.Remaining--
	return c, c.Remaining == 0
}
