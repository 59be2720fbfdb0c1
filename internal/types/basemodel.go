package types

import (
	"context"
	"time"
)

// BaseModel is embedded by every persisted domain model. UserID is the owning account;
// all user-facing reads and writes are scoped by it.
type BaseModel struct {
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
}

func GetDefaultBaseModel(ctx context.Context) BaseModel {
	now := Now(ctx)
	return BaseModel{
		UserID:    GetUserID(ctx),
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: GetUserID(ctx),
		UpdatedBy: GetUserID(ctx),
	}
}

// Touch refreshes the update audit fields
func (b *BaseModel) Touch(ctx context.Context) {
	b.UpdatedAt = Now(ctx)
	if userID := GetUserID(ctx); userID != "" {
		b.UpdatedBy = userID
	}
}
