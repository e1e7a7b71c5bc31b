package points

import (
	"context"
	"sync"
)

// MemoryRepository は固定のポイント一覧を返す実装です。
// 開発環境とテストで使用します。
type MemoryRepository struct {
	mu     sync.RWMutex
	points []Point
}

// NewMemoryRepository は与えられたポイント一覧を持つリポジトリを作成します。
func NewMemoryRepository(points []Point) *MemoryRepository {
	return &MemoryRepository{points: points}
}

// List はポイント一覧のコピーを返します。
func (r *MemoryRepository) List(ctx context.Context) ([]Point, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Point, len(r.points))
	copy(out, r.points)
	return out, nil
}
