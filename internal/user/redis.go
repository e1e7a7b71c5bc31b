package user

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const userKeyPrefix = "user:"

// RedisRepository は資格情報レコードを Redis に保存します。
type RedisRepository struct {
	rdb *redis.Client
}

// NewRedisRepository は RedisRepository を作成します。
func NewRedisRepository(rdb *redis.Client) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

// FindByUsername はユーザー名でレコードを検索します。
func (r *RedisRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	data, err := r.rdb.Get(ctx, userKey(username)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create はレコードを SETNX で作成します。
// 既存キーがある場合は書き込まれないため、同一ユーザー名の同時登録でも
// 一意制約がアトミックに守られます。
func (r *RedisRepository) Create(ctx context.Context, u *User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, userKey(u.Username), payload, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

func userKey(username string) string {
	return userKeyPrefix + username
}
