// Package user はユーザー資格情報レコードとリポジトリ抽象を提供します。
package user

import (
	"context"
	"errors"
)

var (
	// ErrNotFound は指定したユーザー名のレコードが存在しないことを表します。
	ErrNotFound = errors.New("user: not found")
	// ErrDuplicate はユーザー名の一意制約違反を表します。
	ErrDuplicate = errors.New("user: duplicate username")
)

// User は保存される資格情報レコードです。
// PasswordHash は bcrypt 出力であり、平文パスワードは一切保持しません。
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

// Principal はセッションに載せてよいユーザー情報の射影です。
// 資格情報ハッシュは含めません。
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Principal はレコードからセッション用の射影を作ります。
func (u *User) Principal() Principal {
	return Principal{
		ID:       u.ID,
		Username: u.Username,
	}
}

// Repository は資格情報レコードの永続化を抽象化します。
// 実装は並行アクセスに対して安全で、Create はユーザー名の一意制約を
// アトミックに保証しなければなりません（存在チェックとの二段構えでは
// 同時登録の競合を防げないため）。
type Repository interface {
	// FindByUsername はユーザー名でレコードを検索します。
	// 見つからない場合は ErrNotFound を返します。
	FindByUsername(ctx context.Context, username string) (*User, error)
	// Create はレコードを新規作成します。
	// 同名レコードが既に存在する場合は ErrDuplicate を返します。
	Create(ctx context.Context, u *User) error
}
