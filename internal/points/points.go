// Package points はサンプルのリソースコレクション「ポイント」を提供します。
// 認証境界の例示が目的で、レコード自体はユーザーと紐付きません。
package points

import "context"

// Point は読み取り専用のリソースレコードです。
type Point struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Repository はポイントコレクションの読み取りを抽象化します。
type Repository interface {
	List(ctx context.Context) ([]Point, error)
}
