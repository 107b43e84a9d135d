// Package migrations はオブジェクトストアのスキーマ定義SQLを埋め込みで提供する。
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed mysql/*.sql sqlite/*.sql
var files embed.FS

// ForDialect は指定されたDBダイアレクト用のマイグレーションファイル群を返す。
func ForDialect(dialect string) (fs.FS, error) {
	switch dialect {
	case "mysql", "sqlite":
		return fs.Sub(files, dialect)
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
}
