// Package keystore は鍵オブジェクトを封印して永続ストアに保存する。
package keystore

import (
	"context"
	"fmt"
	"log/slog"
)

// Sealer は保存前のオブジェクトを暗号化する。
type Sealer interface {
	Seal(ctx context.Context, objectID string, plaintext []byte) ([]byte, error)
	Open(ctx context.Context, objectID string, sealed []byte) ([]byte, error)
}

// ObjectRepository は識別子付きバイト列の永続化を提供する。
type ObjectRepository interface {
	Read(ctx context.Context, objectID string) ([]byte, error)
	Write(ctx context.Context, objectID string, data []byte) error
	Exists(ctx context.Context, objectID string) (bool, error)
}

// Store は平文オブジェクトを封印してから永続化する。
type Store struct {
	repo   ObjectRepository
	sealer Sealer
}

// NewStore はStoreを生成する。
func NewStore(repo ObjectRepository, sealer Sealer) *Store {
	return &Store{repo: repo, sealer: sealer}
}

// Read はオブジェクトを読み出して封印を解く。
// 存在しない場合は domain.ErrItemNotFound を包んだエラーを返す。
func (s *Store) Read(ctx context.Context, objectID string) ([]byte, error) {
	sealed, err := s.repo.Read(ctx, objectID)
	if err != nil {
		return nil, err
	}
	plaintext, err := s.sealer.Open(ctx, objectID, sealed)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open sealed object", "object_id", objectID, "error", err)
		return nil, fmt.Errorf("opening %s: %w", objectID, err)
	}
	return plaintext, nil
}

// Write はオブジェクトを封印して保存する。既存の内容は置き換えられる。
func (s *Store) Write(ctx context.Context, objectID string, plaintext []byte) error {
	sealed, err := s.sealer.Seal(ctx, objectID, plaintext)
	if err != nil {
		slog.ErrorContext(ctx, "failed to seal object", "object_id", objectID, "error", err)
		return fmt.Errorf("sealing %s: %w", objectID, err)
	}
	return s.repo.Write(ctx, objectID, sealed)
}

// Exists はオブジェクトが永続ストアに存在するかを返す。
func (s *Store) Exists(ctx context.Context, objectID string) (bool, error) {
	return s.repo.Exists(ctx, objectID)
}
