// Package audit は認証イベントの非同期監査記録を提供します。
package audit

import "time"

// Kind はイベント種別を表します。
type Kind string

const (
	KindLoginSuccess Kind = "login_success"
	KindLoginFailure Kind = "login_failure"
	KindRegistration Kind = "registration"
)

// Event は記録される監査イベントです。
// パスワードやハッシュなどの資格情報は含めません。
type Event struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Username string    `json:"username"`
	ClientIP string    `json:"clientIp,omitempty"`
	At       time.Time `json:"at"`
}
