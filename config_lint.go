package goAccounts

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

// LintWarning is one configuration smell. Lint warnings never block Build.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of warnings from [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports valid but risky combinations.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if !c.LoginThrottle.Enabled || (!c.LoginThrottle.BlockByIP && !c.LoginThrottle.BlockByUser) {
		add("login_throttle_disabled", LintHigh, "failed-login blocking is off; password guessing is unbounded")
	}
	if c.LoginThrottle.Enabled && c.LoginThrottle.BlockByUser && c.LoginThrottle.AttemptsUntilBlockByUser > 100 {
		add("user_throttle_loose", LintWarn, "more than 100 failures allowed per user window")
	}
	if c.Resume.MaxLoginTokens > 500 {
		add("resume_tokens_high", LintWarn, "MaxLoginTokens above 500 lets token sets grow large")
	}
	if c.Tasks.DropIfFull {
		add("tasks_drop_if_full", LintInfo, "AfterCreateUser and AfterValidateLogin hooks may be dropped under load")
	}
	if c.Tasks.TaskTimeout == 0 {
		add("tasks_no_timeout", LintWarn, "background hooks run without a deadline and can stall Close")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", LintInfo, "audit backpressure blocks pipeline calls")
	}

	return ws
}
