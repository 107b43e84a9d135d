// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"key-manager-service/internal/domain"
)

// SecureObjectModel はgorm用のモデル定義。Dataは封印済みのバイト列。
type SecureObjectModel struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	ObjectID  string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_object_id"`
	Data      []byte    `gorm:"type:blob;not null"`
	CreatedAt time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:datetime(6);not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (SecureObjectModel) TableName() string {
	return "secure_objects"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *SecureObjectModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// ObjectRepository は固定識別子で管理される永続オブジェクトへのアクセスを提供する。
type ObjectRepository struct {
	db *gorm.DB
}

// NewObjectRepository は新しいObjectRepositoryを生成する。
func NewObjectRepository(db *gorm.DB) *ObjectRepository {
	return &ObjectRepository{db: db}
}

// Read は指定された識別子のオブジェクトを読み込む。存在しない場合はErrItemNotFound。
func (r *ObjectRepository) Read(ctx context.Context, objectID string) ([]byte, error) {
	var model SecureObjectModel
	err := r.db.WithContext(ctx).
		Where("object_id = ?", objectID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		slog.ErrorContext(ctx, "failed to read object",
			"operation", "read",
			"object_id", objectID,
			"error", err,
		)
		return nil, err
	}
	return model.Data, nil
}

// Write は指定された識別子にオブジェクトを書き込む。既存の内容は上書きする。
func (r *ObjectRepository) Write(ctx context.Context, objectID string, data []byte) error {
	model := &SecureObjectModel{
		ObjectID: objectID,
		Data:     data,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "object_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to write object",
			"operation", "write",
			"object_id", objectID,
			"error", err,
		)
		return err
	}
	return nil
}

// Exists は指定された識別子のオブジェクトが存在するか確認する。
func (r *ObjectRepository) Exists(ctx context.Context, objectID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&SecureObjectModel{}).
		Where("object_id = ?", objectID).
		Count(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to count objects",
			"operation", "exists",
			"object_id", objectID,
			"error", err,
		)
		return false, err
	}
	return count > 0, nil
}
