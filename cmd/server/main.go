// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/joho/godotenv"

	"key-manager-service/config"
	"key-manager-service/internal/dispatcher"
	"key-manager-service/internal/handler"
	"key-manager-service/internal/infra"
	"key-manager-service/internal/keycache"
	"key-manager-service/internal/keystore"
	"key-manager-service/internal/policy"
	"key-manager-service/internal/repository"
	"key-manager-service/internal/usecase"
)

func main() {
	// 終了時にmemguardの保護領域をすべて消去する
	defer memguard.Purge()
	if err := run(); err != nil {
		slog.Error("server error", "error", err)
		memguard.Purge()
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		return err
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(os.Stdout, cfg)

	// DB初期化
	db, dialect, err := infra.NewDB(cfg)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// 保存時の封印方式を選択
	sealer, closeSealer, err := newSealer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeSealer(); closeErr != nil {
			slog.Error("failed to close sealer", "error", closeErr)
		}
	}()

	// DI
	store := keystore.NewStore(repository.NewObjectRepository(db), sealer)
	service := usecase.NewKeyService(keycache.New(store), cfg.RSAKeyBits)
	d := dispatcher.New(policy.NewEngine(cfg.PrincipalA, cfg.PrincipalB), service)
	router := handler.NewRouter(
		handler.NewCommandHandler(d, cfg.MaxBufferSize),
		handler.NewHealthHandler(sqlDB),
	)

	// サーバー起動
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port, "database", dialect, "version", infra.Version())
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// newSealer はKMS_KEY_NAMEがあればCloud KMS、なければSEAL_SECRETによるローカル封印を返す。
func newSealer(ctx context.Context, cfg *config.Config) (keystore.Sealer, func() error, error) {
	if cfg.KMSKeyName != "" {
		kmsClient, err := infra.NewKMSClient(ctx, cfg.KMSKeyName)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("sealing objects with Cloud KMS")
		return kmsClient, kmsClient.Close, nil
	}

	local, err := infra.NewLocalSealer(cfg.SealSecret)
	if err != nil {
		return nil, nil, err
	}
	slog.Warn("sealing objects with a local secret; use KMS_KEY_NAME in production")
	return local, func() error { return nil }, nil
}
