package user

import (
	"context"
	"sync"
)

// MemoryRepository はミューテックスで保護したマップによる実装です。
// 開発環境とテストで使用します。
type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]User
}

// NewMemoryRepository は空の MemoryRepository を作成します。
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users: make(map[string]User),
	}
}

// FindByUsername はユーザー名でレコードを検索します。
func (r *MemoryRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	copied := u
	return &copied, nil
}

// Create はレコードを新規作成します。
// 重複チェックと挿入を同一クリティカルセクション内で行うため、
// 同時登録でも勝者は一人だけになります。
func (r *MemoryRepository) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.Username]; ok {
		return ErrDuplicate
	}
	r.users[u.Username] = *u
	return nil
}
