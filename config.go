package goAccounts

import (
	"errors"
	"time"
)

// Config holds engine tuning. Business settings that change at runtime live
// in [Settings] instead.
type Config struct {
	Resume        ResumeConfig
	LoginThrottle LoginThrottleConfig
	Tasks         TasksConfig
	Password      PasswordConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Templates     TemplateConfig
}

/*
====================================
RESUME CONFIG
====================================
*/

// DefaultMaxResumeLoginTokens bounds stored resume tokens per user.
const DefaultMaxResumeLoginTokens = 50

// ResumeConfig controls resume-token issuance and pruning.
type ResumeConfig struct {
	MaxLoginTokens int
	// IssueOnPasswordLogin makes LoginWithPassword mint a resume token.
	IssueOnPasswordLogin bool
}

/*
====================================
LOGIN THROTTLE CONFIG
====================================
*/

// LoginThrottleConfig mirrors the Block_Multiple_Failed_Logins settings.
// It only applies when the Builder is given a Redis client.
type LoginThrottleConfig struct {
	Enabled                  bool
	BlockByIP                bool
	BlockByUser              bool
	AttemptsUntilBlockByIP   int
	AttemptsUntilBlockByUser int
	TimeToUnblockByIP        time.Duration
	TimeToUnblockByUser      time.Duration
	IPWhitelist              []string
	RedisPrefix              string
}

/*
====================================
TASKS CONFIG
====================================
*/

// TasksConfig sizes the background queue for fire-and-forget hook chains.
type TasksConfig struct {
	Workers     int
	BufferSize  int
	DropIfFull  bool
	TaskTimeout time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters for the password service.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int

	// UpgradeOnLogin rehashes stored passwords made with weaker parameters.
	UpgradeOnLogin bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
TEMPLATE CONFIG
====================================
*/

// TemplateConfig holds the admin approval mail. [name], [email] and [reason]
// are substituted with HTML-escaped values.
type TemplateConfig struct {
	AdminApprovalSubject        string
	AdminApprovalHTML           string
	AdminApprovalWithReasonHTML string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when the Builder is given none.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Resume: ResumeConfig{
			MaxLoginTokens:       DefaultMaxResumeLoginTokens,
			IssueOnPasswordLogin: true,
		},
		LoginThrottle: LoginThrottleConfig{
			Enabled:                  true,
			BlockByIP:                true,
			BlockByUser:              true,
			AttemptsUntilBlockByIP:   50,
			AttemptsUntilBlockByUser: 10,
			TimeToUnblockByIP:        5 * time.Minute,
			TimeToUnblockByUser:      5 * time.Minute,
			RedisPrefix:              "acc:",
		},
		Tasks: TasksConfig{
			Workers:     2,
			BufferSize:  256,
			DropIfFull:  false,
			TaskTimeout: 30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      10,
			UpgradeOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Templates: TemplateConfig{
			AdminApprovalSubject:        defaultAdminApprovalSubject,
			AdminApprovalHTML:           defaultAdminApprovalHTML,
			AdminApprovalWithReasonHTML: defaultAdminApprovalWithReasonHTML,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.LoginThrottle.IPWhitelist != nil {
		out.LoginThrottle.IPWhitelist = append([]string{}, cfg.LoginThrottle.IPWhitelist...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Resume.MaxLoginTokens <= 0 {
		return errors.New("Resume MaxLoginTokens must be > 0")
	}

	if c.LoginThrottle.Enabled {
		if c.LoginThrottle.BlockByIP && c.LoginThrottle.AttemptsUntilBlockByIP <= 0 {
			return errors.New("LoginThrottle AttemptsUntilBlockByIP must be > 0")
		}
		if c.LoginThrottle.BlockByUser && c.LoginThrottle.AttemptsUntilBlockByUser <= 0 {
			return errors.New("LoginThrottle AttemptsUntilBlockByUser must be > 0")
		}
		if c.LoginThrottle.TimeToUnblockByIP < 0 || c.LoginThrottle.TimeToUnblockByUser < 0 {
			return errors.New("LoginThrottle unblock durations must be >= 0")
		}
	}

	if c.Tasks.Workers <= 0 {
		return errors.New("Tasks Workers must be > 0")
	}
	if c.Tasks.BufferSize <= 0 {
		return errors.New("Tasks BufferSize must be > 0")
	}
	if c.Tasks.TaskTimeout < 0 {
		return errors.New("Tasks TaskTimeout must be >= 0")
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return errors.New("Password Time and Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return errors.New("Password SaltLength and KeyLength must be >= 16")
	}
	if c.Password.MinLength < 0 {
		return errors.New("Password MinLength must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	if c.Templates.AdminApprovalSubject == "" || c.Templates.AdminApprovalHTML == "" {
		return errors.New("Templates admin approval subject and body are required")
	}
	if c.Templates.AdminApprovalWithReasonHTML == "" {
		return errors.New("Templates AdminApprovalWithReasonHTML is required")
	}

	return nil
}
