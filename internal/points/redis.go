package points

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const pointsKey = "points"

// RedisRepository はポイント一覧を Redis の JSON 値として読み取ります。
type RedisRepository struct {
	rdb *redis.Client
}

// NewRedisRepository は RedisRepository を作成します。
func NewRedisRepository(rdb *redis.Client) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

// List はポイント一覧を取得します。キーが無い場合は空を返します。
func (r *RedisRepository) List(ctx context.Context) ([]Point, error) {
	data, err := r.rdb.Get(ctx, pointsKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return []Point{}, nil
		}
		return nil, err
	}
	var out []Point
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
