package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const taskTypeEvent = "audit:event"

// Manager は監査イベントの投入とワーカー処理を担います。
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  *Store
	logger *log.Logger
}

// NewManager は Manager を初期化します。
func NewManager(redisURL string, store *Store, logger *log.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"audit": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client: client,
		server: server,
		mux:    mux,
		store:  store,
		logger: logger,
	}
	mux.HandleFunc(taskTypeEvent, manager.handleEvent)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			m.logger.Printf("asynq server stopped with error: %v", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	m.client.Close()
	return nil
}

// RecordAuthEvent は認証イベントをキューに投入します。
// 監査の失敗で認証リクエスト自体を失敗させないため、エラーはログに
// 残すだけで呼び出し元へは返しません。
func (m *Manager) RecordAuthEvent(ctx context.Context, kind, username, clientIP string) {
	event := &Event{
		ID:       uuid.NewString(),
		Kind:     Kind(kind),
		Username: username,
		ClientIP: clientIP,
		At:       time.Now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		m.logger.Printf("failed to marshal audit event: %v", err)
		return
	}
	task := asynq.NewTask(taskTypeEvent, body, asynq.Queue("audit"))
	if _, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(1)); err != nil {
		m.logger.Printf("failed to enqueue audit event: %v", err)
	}
}

func (m *Manager) handleEvent(ctx context.Context, task *asynq.Task) error {
	var event Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return err
	}
	if event.ID == "" {
		return fmt.Errorf("missing event id in payload")
	}
	return m.store.Append(ctx, &event)
}
