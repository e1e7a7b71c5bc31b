// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/memstore"
	redisstore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/auth-gateway/internal/audit"
	"github.com/yourusername/auth-gateway/internal/auth"
	"github.com/yourusername/auth-gateway/internal/config"
	"github.com/yourusername/auth-gateway/internal/points"
	"github.com/yourusername/auth-gateway/internal/user"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// セッションストアの設定（クッキー署名鍵は必須、未設定時は起動ごとに生成）
	// セッション実体はサーバー側に保持する。ログアウト後に古いクッキーを
	// 再送されても認証済みに戻らないようにするため。
	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		log.Printf("SESSION_SECRET is not set; using an ephemeral secret (sessions will not survive restarts)")
	}
	store, err := setupSessionStore(cfg, secret)
	if err != nil {
		log.Fatalf("Failed to set up session store: %v", err)
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   auth.SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"X-CSRF-Token", // CSRF保護用ヘッダー
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンを読み取れるように公開
	corsConfig.ExposeHeaders = []string{"X-CSRF-Token"}
	router.Use(cors.New(corsConfig))

	// リポジトリと監査マネージャーの構築
	userRepo, pointsRepo, auditManager := setupStores(cfg)
	if auditManager != nil {
		auditManager.StartWorkers()
	}

	// 認証コンポーネントの組み立て（依存はすべて注入する）
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	verifier := auth.NewVerifier(userRepo, hasher)
	registrar := auth.NewRegistrar(userRepo, hasher)

	var recorder auth.AuditRecorder
	if auditManager != nil {
		recorder = auditManager
	}
	authManager := auth.NewManager(verifier, registrar, recorder, log.Default())

	// ルーティングの設定
	setupRoutes(router, cfg, authManager, pointsRepo)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupSessionStore は REDIS_URL の有無でセッションストアを切り替えます。
// どちらもサーバー側ストアで、クッキーには不透明なセッションIDだけが載ります。
func setupSessionStore(cfg *config.Config, secret string) (sessions.Store, error) {
	if cfg.RedisURL == "" {
		return memstore.NewStore([]byte(secret)), nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return redisstore.NewStore(10, "tcp", opt.Addr, opt.Username, opt.Password, []byte(secret))
}

// setupStores は REDIS_URL の有無で永続化実装を切り替えます。
// Redis が無い開発環境ではインメモリ実装を使い、監査は無効になります。
func setupStores(cfg *config.Config) (user.Repository, points.Repository, *audit.Manager) {
	if cfg.RedisURL == "" {
		pointsRepo := points.NewMemoryRepository([]points.Point{
			{ID: "1", Label: "sample-a", Value: 10},
			{ID: "2", Label: "sample-b", Value: 25},
		})
		return user.NewMemoryRepository(), pointsRepo, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opt)

	auditStore := audit.NewStore(rdb, cfg.AuditMaxEvents)
	auditManager, err := audit.NewManager(cfg.RedisURL, auditStore, log.Default())
	if err != nil {
		log.Fatalf("Failed to set up audit manager: %v", err)
	}

	return user.NewRedisRepository(rdb), points.NewRedisRepository(rdb), auditManager
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "auth-gateway-api",
		"version": "0.1.0",
	})
}

// handleWelcome はルートパスのハンドラーです。
func handleWelcome(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to the authentication system!")
}

// setupRoutes は認証エンドポイントとリソースエンドポイントの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, authManager *auth.Manager, pointsRepo points.Repository) {
	router.GET("/", handleWelcome)
	router.GET("/health", handleHealth)

	// ログイン時はセッション未生成なので CSRF 検証は不要
	router.POST("/login", authManager.Login)
	router.POST("/register", authManager.Register)
	// GET は移植元の契約どおり常に 200。POST 側は強制ログアウト対策として
	// CSRF トークンを要求する
	router.GET("/logout", authManager.Logout)
	router.POST("/logout", authManager.VerifyCSRF(), authManager.Logout)

	// ポイント一覧。移植元は未認証で公開していたため、認証必須化は
	// POINTS_REQUIRE_AUTH による明示的な選択にしている。
	listPoints := points.ListHandler(pointsRepo, log.Default())
	if cfg.PointsRequireAuth {
		protected := router.Group("")
		protected.Use(authManager.RequireLogin(), authManager.VerifyCSRF())
		protected.GET("/points", listPoints)
	} else {
		router.GET("/points", listPoints)
	}
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to generate session secret: %v", err)
	}
	return hex.EncodeToString(buf)
}
