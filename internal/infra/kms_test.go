package infra

import (
	"bytes"
	"context"
	"errors"
	"testing"

	kmspb "cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"key-manager-service/internal/domain"
)

// mockKMS はAADを検証する簡易KMS。
type mockKMS struct {
	decryptErr error
	lastAAD    []byte
	closed     bool
}

func (m *mockKMS) Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error) {
	m.lastAAD = req.AdditionalAuthenticatedData
	out := append(append([]byte{}, req.AdditionalAuthenticatedData...), req.Plaintext...)
	return &kmspb.EncryptResponse{Ciphertext: out}, nil
}

func (m *mockKMS) Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error) {
	if m.decryptErr != nil {
		return nil, m.decryptErr
	}
	aad := req.AdditionalAuthenticatedData
	if !bytes.HasPrefix(req.Ciphertext, aad) {
		return nil, status.Error(codes.InvalidArgument, "Decryption failed: the ciphertext is invalid.")
	}
	return &kmspb.DecryptResponse{Plaintext: req.Ciphertext[len(aad):]}, nil
}

func (m *mockKMS) Close() error {
	m.closed = true
	return nil
}

func TestKMSClient_SealOpen(t *testing.T) {
	mock := &mockKMS{}
	c := newKMSClient(mock, "projects/p/locations/l/keyRings/r/cryptoKeys/k")
	ctx := context.Background()

	sealed, err := c.Seal(ctx, domain.SymmetricKeyObjectID, []byte("secret"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if string(mock.lastAAD) != domain.SymmetricKeyObjectID {
		t.Errorf("object id must be bound as AAD, got %q", mock.lastAAD)
	}

	plaintext, err := c.Open(ctx, domain.SymmetricKeyObjectID, sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if string(plaintext) != "secret" {
		t.Errorf("unexpected plaintext %q", plaintext)
	}

	if err := c.Close(); err != nil || !mock.closed {
		t.Errorf("Close did not close the client: %v", err)
	}
}

func TestKMSClient_OpenRejectedBlobIsCorrupt(t *testing.T) {
	c := newKMSClient(&mockKMS{}, "key")
	ctx := context.Background()

	sealed, err := c.Seal(ctx, domain.SymmetricKeyObjectID, []byte("secret"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	// 別オブジェクトとして開く
	_, err = c.Open(ctx, domain.AsymmetricKeyObjectID, sealed)
	if !errors.Is(err, domain.ErrCorruptObject) {
		t.Fatalf("expected ErrCorruptObject, got %v", err)
	}
	if got := domain.ErrorCode(err); got != domain.CodeCorruptObject {
		t.Errorf("expected %s, got %s", domain.CodeCorruptObject, got)
	}
}

func TestKMSClient_OpenTransportErrorIsNotCorrupt(t *testing.T) {
	c := newKMSClient(&mockKMS{decryptErr: status.Error(codes.Unavailable, "connection refused")}, "key")

	_, err := c.Open(context.Background(), domain.SymmetricKeyObjectID, []byte("blob"))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, domain.ErrCorruptObject) {
		t.Error("unavailable KMS must not be reported as a corrupt object")
	}
	if got := domain.ErrorCode(err); got != domain.CodeInternalError {
		t.Errorf("expected %s, got %s", domain.CodeInternalError, got)
	}
}
