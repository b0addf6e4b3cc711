package goAccounts

import (
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type envOverlay struct {
	MaxResumeLoginTokens string `envconfig:"MAX_RESUME_LOGIN_TOKENS"`

	ThrottleEnabled          bool          `envconfig:"ACCOUNTS_LOGIN_THROTTLE_ENABLED"`
	AttemptsUntilBlockByIP   int           `envconfig:"ACCOUNTS_ATTEMPTS_UNTIL_BLOCK_BY_IP"`
	AttemptsUntilBlockByUser int           `envconfig:"ACCOUNTS_ATTEMPTS_UNTIL_BLOCK_BY_USER"`
	TimeToUnblockByIP        time.Duration `envconfig:"ACCOUNTS_TIME_TO_UNBLOCK_BY_IP"`
	TimeToUnblockByUser      time.Duration `envconfig:"ACCOUNTS_TIME_TO_UNBLOCK_BY_USER"`
	IPWhitelist              string        `envconfig:"ACCOUNTS_IP_WHITELIST"`

	TaskWorkers    int  `envconfig:"ACCOUNTS_TASK_WORKERS"`
	TaskBufferSize int  `envconfig:"ACCOUNTS_TASK_BUFFER_SIZE"`
	AuditEnabled   bool `envconfig:"ACCOUNTS_AUDIT_ENABLED"`
	MetricsEnabled bool `envconfig:"ACCOUNTS_METRICS_ENABLED"`
}

// LoadEnvConfig overlays environment variables onto base. Unset variables
// keep base values. MAX_RESUME_LOGIN_TOKENS falls back to
// DefaultMaxResumeLoginTokens when it is not a positive integer.
func LoadEnvConfig(base Config) (Config, error) {
	cfg := cloneConfig(base)

	env := envOverlay{
		ThrottleEnabled:          cfg.LoginThrottle.Enabled,
		AttemptsUntilBlockByIP:   cfg.LoginThrottle.AttemptsUntilBlockByIP,
		AttemptsUntilBlockByUser: cfg.LoginThrottle.AttemptsUntilBlockByUser,
		TimeToUnblockByIP:        cfg.LoginThrottle.TimeToUnblockByIP,
		TimeToUnblockByUser:      cfg.LoginThrottle.TimeToUnblockByUser,
		IPWhitelist:              strings.Join(cfg.LoginThrottle.IPWhitelist, ","),
		TaskWorkers:              cfg.Tasks.Workers,
		TaskBufferSize:           cfg.Tasks.BufferSize,
		AuditEnabled:             cfg.Audit.Enabled,
		MetricsEnabled:           cfg.Metrics.Enabled,
	}
	if err := envconfig.Process("", &env); err != nil {
		return Config{}, err
	}

	if env.MaxResumeLoginTokens != "" {
		cfg.Resume.MaxLoginTokens = parseMaxResumeTokens(env.MaxResumeLoginTokens)
	}

	cfg.LoginThrottle.Enabled = env.ThrottleEnabled
	cfg.LoginThrottle.AttemptsUntilBlockByIP = env.AttemptsUntilBlockByIP
	cfg.LoginThrottle.AttemptsUntilBlockByUser = env.AttemptsUntilBlockByUser
	cfg.LoginThrottle.TimeToUnblockByIP = env.TimeToUnblockByIP
	cfg.LoginThrottle.TimeToUnblockByUser = env.TimeToUnblockByUser
	cfg.LoginThrottle.IPWhitelist = parseCSV(env.IPWhitelist)
	cfg.Tasks.Workers = env.TaskWorkers
	cfg.Tasks.BufferSize = env.TaskBufferSize
	cfg.Audit.Enabled = env.AuditEnabled
	cfg.Metrics.Enabled = env.MetricsEnabled

	return cfg, nil
}

func parseMaxResumeTokens(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultMaxResumeLoginTokens
	}
	return n
}
