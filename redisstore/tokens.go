package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/redis/go-redis/v9"
)

const removeOlderTokensScript = `
local members = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1])
for _, m in ipairs(members) do
  redis.call("DEL", ARGV[2] .. m)
end
if #members > 0 then
  redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1])
end
return #members
`

var removeOlderTokensLua = redis.NewScript(removeOlderTokensScript)

// ResumeTokens stores hashed resume tokens.
type ResumeTokens struct {
	redis  redis.UniversalClient
	prefix string
}

// NewResumeTokens returns a store using keys under prefix.
func NewResumeTokens(client redis.UniversalClient, prefix string) *ResumeTokens {
	return &ResumeTokens{redis: client, prefix: prefix}
}

func (s *ResumeTokens) userKey(userID string) string {
	return s.prefix + "rt:" + userID
}

func (s *ResumeTokens) tokenKeyPrefix() string {
	return s.prefix + "rth:"
}

// AddResumeToken records token for userID.
func (s *ResumeTokens) AddResumeToken(ctx context.Context, userID string, token goAccounts.ResumeToken) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.userKey(userID), redis.Z{
			Score:  float64(token.When.UnixMilli()),
			Member: token.HashedToken,
		})
		pipe.Set(ctx, s.tokenKeyPrefix()+token.HashedToken, userID, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ResumeTokens returns userID's tokens, oldest first.
func (s *ResumeTokens) ResumeTokens(ctx context.Context, userID string) ([]goAccounts.ResumeToken, error) {
	zs, err := s.redis.ZRangeWithScores(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]goAccounts.ResumeToken, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, goAccounts.ResumeToken{
			HashedToken: member,
			When:        time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return out, nil
}

// RemoveResumeTokensOlderThan deletes tokens issued strictly before cutoff.
func (s *ResumeTokens) RemoveResumeTokensOlderThan(ctx context.Context, userID string, cutoff time.Time) error {
	err := removeOlderTokensLua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(userID)},
		strconv.FormatInt(cutoff.UnixMilli(), 10),
		s.tokenKeyPrefix(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// FindUserIDByResumeToken resolves a hashed token. Unknown tokens return
// goAccounts.ErrResumeTokenInvalid.
func (s *ResumeTokens) FindUserIDByResumeToken(ctx context.Context, hashedToken string) (string, error) {
	userID, err := s.redis.Get(ctx, s.tokenKeyPrefix()+hashedToken).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", goAccounts.ErrResumeTokenInvalid
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return userID, nil
}
