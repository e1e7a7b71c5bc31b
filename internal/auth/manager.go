package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/auth-gateway/internal/user"
)

const (
	SessionCookieName    = "ag_session"
	sessionKeyUserID     = "principal_id"
	sessionKeyUsername   = "principal_name"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
	sessionKeyCSRF       = "csrf_token"

	csrfHeader = "X-CSRF-Token"
)

var (
	maxSessionLifetime = 12 * time.Hour
	idleTimeout        = 30 * time.Minute
)

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(maxSessionLifetime.Seconds())
}

// ContextPrincipalKey は、ハンドラー間でログイン済みプリンシパルを共有するためのキーです。
const ContextPrincipalKey = "auth.principal"

// AuditRecorder は認証イベントの記録先です。実装は資格情報を一切
// 受け取りません。
type AuditRecorder interface {
	RecordAuthEvent(ctx context.Context, kind, username, clientIP string)
}

// Manager は認証処理とセッション状態遷移をまとめた構造体です。
// グローバルな認証レジストリは持たず、依存はすべて注入されます。
type Manager struct {
	verifier  *Verifier
	registrar *Registrar
	audit     AuditRecorder
	logger    *log.Logger
}

// NewManager は認証マネージャーを作成します。audit は nil 可です。
func NewManager(verifier *Verifier, registrar *Registrar, audit AuditRecorder, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		verifier:  verifier,
		registrar: registrar,
		audit:     audit,
		logger:    logger,
	}
}

type credentialsRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// Login は POST /login のハンドラーです。
// 成功時はセッションを確立して 200 を返します。ユーザー名不明と
// パスワード不一致は同一の 401 応答になります。
func (m *Manager) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "username and password are required",
		})
		return
	}

	principal, err := m.verifier.VerifyCredentials(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			m.record(c, "login_failure", req.Username)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid username or password",
			})
			return
		}
		m.logger.Printf("login failed for internal reason: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	token, err := generateToken()
	if err != nil {
		m.logger.Printf("failed to generate csrf token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	session := sessions.Default(c)
	m.serializePrincipal(session, principal, token)
	if err := session.Save(); err != nil {
		m.logger.Printf("failed to save session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	m.record(c, "login_success", principal.Username)
	c.Header(csrfHeader, token)
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged in successfully",
	})
}

// Register は POST /register のハンドラーです。
func (m *Manager) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "username and password are required",
		})
		return
	}

	_, err := m.registrar.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "User already exists",
			})
		case errors.Is(err, ErrEmptyCredentials):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "username and password are required",
			})
		default:
			m.logger.Printf("registration failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	m.record(c, "registration", req.Username)
	c.JSON(http.StatusOK, gin.H{
		"message": "User registered successfully",
	})
}

// Logout は GET /logout のハンドラーです。
// 匿名セッションに対しても常に 200 を返します（冪等）。
func (m *Manager) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		m.logger.Printf("failed to clear session on logout: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// RequireLogin はセッションを検証するミドルウェアを返します。
// 有効期限切れ・無操作タイムアウトのセッションは破棄して 401 を返します。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		principal, ok := m.currentPrincipal(session)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		now := time.Now()
		issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
		lastActive := readUnix(session.Get(sessionKeyLastActive))

		if issuedAt.IsZero() || now.Sub(issuedAt) > maxSessionLifetime {
			session.Clear()
			_ = session.Save()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Session expired",
			})
			return
		}

		if lastActive.IsZero() || now.Sub(lastActive) > idleTimeout {
			session.Clear()
			_ = session.Save()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Session expired",
			})
			return
		}

		session.Set(sessionKeyLastActive, now.Unix())
		_ = session.Save()
		c.Set(ContextPrincipalKey, principal)
		c.Next()
	}
}

// VerifyCSRF は X-CSRF-Token ヘッダーを検証するミドルウェアです。
func (m *Manager) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		expected, ok := session.Get(sessionKeyCSRF).(string)
		if !ok || expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "CSRF token missing",
			})
			return
		}

		received := c.GetHeader(csrfHeader)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "CSRF token mismatch",
			})
			return
		}

		c.Next()
	}
}

// serializePrincipal はプリンシパルをセッションへ書き込みます。
// 保存するのは ID とユーザー名だけで、資格情報ハッシュは決して
// セッションに載せません。既存の値は破棄されます（セッション固定対策）。
func (m *Manager) serializePrincipal(session sessions.Session, principal *user.Principal, csrfToken string) {
	now := time.Now()
	session.Clear()
	session.Set(sessionKeyUserID, principal.ID)
	session.Set(sessionKeyUsername, principal.Username)
	session.Set(sessionKeyIssuedAt, now.Unix())
	session.Set(sessionKeyLastActive, now.Unix())
	session.Set(sessionKeyCSRF, csrfToken)
}

// currentPrincipal はセッションからプリンシパルを復元します。
// 欠損・型不一致は匿名扱い（fail closed）で、エラーにはしません。
func (m *Manager) currentPrincipal(session sessions.Session) (user.Principal, bool) {
	id, ok := session.Get(sessionKeyUserID).(string)
	if !ok || id == "" {
		return user.Principal{}, false
	}
	name, ok := session.Get(sessionKeyUsername).(string)
	if !ok || name == "" {
		return user.Principal{}, false
	}
	return user.Principal{ID: id, Username: name}, true
}

func (m *Manager) record(c *gin.Context, kind, username string) {
	if m.audit == nil {
		return
	}
	m.audit.RecordAuthEvent(c.Request.Context(), kind, username, c.ClientIP())
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
