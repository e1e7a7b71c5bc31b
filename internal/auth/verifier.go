package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/auth-gateway/internal/user"
)

// ErrInvalidCredentials はユーザー名不明・パスワード不一致の両方を表す
// 単一の拒否エラーです。二つを区別するとユーザー名列挙のオラクルに
// なるため、呼び出し側からは観測上区別できません。
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Verifier は資格情報の照合を行います（ローカルストラテジー）。
type Verifier struct {
	repo   user.Repository
	hasher PasswordHasher
}

// NewVerifier は Verifier を作成します。
func NewVerifier(repo user.Repository, hasher PasswordHasher) *Verifier {
	return &Verifier{
		repo:   repo,
		hasher: hasher,
	}
}

// VerifyCredentials はユーザー名と平文パスワードを照合します。
// 成功時はセッションに載せてよい Principal を返します。
// 拒否は ErrInvalidCredentials、リポジトリ障害やハッシュ内部エラーは
// それ以外のエラーとして返します。平文やハッシュはログに出しません。
func (v *Verifier) VerifyCredentials(ctx context.Context, username, plaintext string) (*user.Principal, error) {
	record, err := v.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ok, err := v.hasher.Verify(ctx, plaintext, record.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	principal := record.Principal()
	return &principal, nil
}
