// Package main はCLIツールのエントリポイント。
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"key-manager-service/internal/infra"
)

var (
	apiURL   string
	login    string
	identity string
	output   string
	timeout  time.Duration
)

// client はPersistentPreRunEで初期化されるコマンドAPIクライアント。
var client *commandClient

func main() {
	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "keyctl",
		Short:        "Key Manager Service CLI",
		SilenceUsage: true,
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", os.Getenv("KEYCTL_API_URL"), "API endpoint URL (or set KEYCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&login, "login", "trusted_app", "Login type presented to the service")
	rootCmd.PersistentFlags().StringVar(&identity, "identity", os.Getenv("KEYCTL_IDENTITY"), "Caller identity UUID (or set KEYCTL_IDENTITY)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(aesCmd())
	rootCmd.AddCommand(encryptCmd())
	rootCmd.AddCommand(decryptCmd())
	rootCmd.AddCommand(randomCmd())
	rootCmd.AddCommand(rsaCmd())
	rootCmd.AddCommand(modelCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// requireClient はAPIを呼ぶサブコマンドの前処理。
func requireClient(cmd *cobra.Command, args []string) error {
	if apiURL == "" {
		return fmt.Errorf("--api-url is required (or set KEYCTL_API_URL)")
	}
	if identity == "" {
		return fmt.Errorf("--identity is required (or set KEYCTL_IDENTITY)")
	}
	client = &commandClient{
		baseURL:  apiURL,
		http:     &http.Client{Timeout: timeout},
		login:    login,
		identity: identity,
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// printBytes はバイト列を出力形式に合わせて表示する。
func printBytes(cmd *cobra.Command, field string, b []byte) error {
	if output == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{field: hex.EncodeToString(b)})
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(b))
	return err
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "keyctl version %s\n", infra.Version())
		},
	}
}
