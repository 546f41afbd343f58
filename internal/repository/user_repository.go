package repository

import (
	"context"

	"app/internal/domain/model"
)

// 保存・取得を約束
// 見つからない場合は(nil, nil)を返す
type UserRepository interface {
	//新規ユーザー作成
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	//ユーザー名からユーザーを1件取得する。
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}
