package infra

import (
	"context"
	"fmt"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"key-manager-service/internal/domain"
)

// kmsAPI はKMSClientが使うCloud KMSの操作。
type kmsAPI interface {
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error)
	Close() error
}

// KMSClient はCloud KMSによる保存オブジェクトの封印を提供する。
type KMSClient struct {
	client  kmsAPI
	keyName string
}

// NewKMSClient はkeyNameの鍵で封印するKMSClientを生成する。
func NewKMSClient(ctx context.Context, keyName string) (*KMSClient, error) {
	if keyName == "" {
		return nil, fmt.Errorf("KMS key name is required")
	}

	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating KMS client: %w", err)
	}
	return newKMSClient(client, keyName), nil
}

func newKMSClient(client kmsAPI, keyName string) *KMSClient {
	return &KMSClient{client: client, keyName: keyName}
}

// Seal は平文をCloud KMSで暗号化する。objectIDは追加認証データとして束縛する。
func (c *KMSClient) Seal(ctx context.Context, objectID string, plaintext []byte) ([]byte, error) {
	resp, err := c.client.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:                        c.keyName,
		Plaintext:                   plaintext,
		AdditionalAuthenticatedData: []byte(objectID),
	})
	if err != nil {
		return nil, fmt.Errorf("sealing %s: %w", objectID, err)
	}
	return resp.Ciphertext, nil
}

// Open は封印されたデータをCloud KMSで復号する。
// 改ざんや別オブジェクトとの入れ替えはKMSがInvalidArgumentで拒否するため、ErrCorruptObjectとして返す。
func (c *KMSClient) Open(ctx context.Context, objectID string, sealed []byte) ([]byte, error) {
	resp, err := c.client.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:                        c.keyName,
		Ciphertext:                  sealed,
		AdditionalAuthenticatedData: []byte(objectID),
	})
	if status.Code(err) == codes.InvalidArgument {
		return nil, fmt.Errorf("%w: opening %s: %v", domain.ErrCorruptObject, objectID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", objectID, err)
	}
	return resp.Plaintext, nil
}

// Close はKMSクライアントを閉じる。
func (c *KMSClient) Close() error {
	return c.client.Close()
}
