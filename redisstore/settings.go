package redisstore

import (
	"context"
	"fmt"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/redis/go-redis/v9"
)

// Settings reads setting values from a Redis hash. Missing fields take
// goAccounts.DefaultSettings values.
type Settings struct {
	redis redis.UniversalClient
	key   string
}

// NewSettings returns a settings source backed by the hash prefix+"settings".
func NewSettings(client redis.UniversalClient, prefix string) *Settings {
	return &Settings{redis: client, key: prefix + "settings"}
}

// Snapshot reads the whole hash once.
func (s *Settings) Snapshot(ctx context.Context) (goAccounts.Settings, error) {
	values, err := s.redis.HGetAll(ctx, s.key).Result()
	if err != nil {
		return goAccounts.Settings{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return goAccounts.SettingsFromMap(values)
}

// SetSetupWizard writes Show_Setup_Wizard.
func (s *Settings) SetSetupWizard(ctx context.Context, state goAccounts.SetupWizardState) error {
	if err := s.redis.HSet(ctx, s.key, goAccounts.SettingShowSetupWizard, string(state)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Store overwrites every setting with the values in settings.
func (s *Settings) Store(ctx context.Context, settings goAccounts.Settings) error {
	values := settings.ToMap()
	args := make([]any, 0, len(values)*2)
	for k, v := range values {
		args = append(args, k, v)
	}
	if err := s.redis.HSet(ctx, s.key, args...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
