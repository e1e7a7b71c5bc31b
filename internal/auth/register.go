package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yourusername/auth-gateway/internal/user"
)

var (
	// ErrUsernameTaken は同名ユーザーが既に存在することを表します。
	ErrUsernameTaken = errors.New("auth: username already taken")
	// ErrEmptyCredentials はユーザー名またはパスワードが空であることを表します。
	ErrEmptyCredentials = errors.New("auth: username and password are required")
)

// Registrar はユーザー登録フローを担います。
type Registrar struct {
	repo   user.Repository
	hasher PasswordHasher
}

// NewRegistrar は Registrar を作成します。
func NewRegistrar(repo user.Repository, hasher PasswordHasher) *Registrar {
	return &Registrar{
		repo:   repo,
		hasher: hasher,
	}
}

// Register は新規ユーザーを登録します。
// 事前の存在チェックは重複を早期に返すための近道にすぎず、一意性の
// 正しさはリポジトリ側のアトミックな制約（Create の ErrDuplicate）が
// 保証します。同一ユーザー名の同時登録では必ず一方だけが勝ちます。
func (r *Registrar) Register(ctx context.Context, username, plaintext string) (*user.User, error) {
	if username == "" || plaintext == "" {
		return nil, ErrEmptyCredentials
	}

	_, err := r.repo.FindByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := r.hasher.Hash(ctx, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	record := &user.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
	}
	if err := r.repo.Create(ctx, record); err != nil {
		if errors.Is(err, user.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return record, nil
}
