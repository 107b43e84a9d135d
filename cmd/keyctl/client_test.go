package main

import (
	"bytes"
	"context"
	"crypto/aes"
	gocipher "crypto/cipher"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"key-manager-service/internal/dispatcher"
	"key-manager-service/internal/domain"
	"key-manager-service/internal/handler"
	"key-manager-service/internal/keycache"
	"key-manager-service/internal/policy"
	"key-manager-service/internal/usecase"
)

const (
	testPrincipalA = "11111111-1111-1111-1111-111111111111"
	testPrincipalB = "22222222-2222-2222-2222-222222222222"
	testStranger   = "33333333-3333-3333-3333-333333333333"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStore) Read(ctx context.Context, objectID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectID]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *memoryStore) Write(ctx context.Context, objectID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectID] = append([]byte(nil), data...)
	return nil
}

func (m *memoryStore) Exists(ctx context.Context, objectID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[objectID]
	return ok, nil
}

type okPinger struct{}

func (okPinger) PingContext(ctx context.Context) error { return nil }

// newTestClient はインメモリのストアで動くサーバーに接続したクライアントを返す。
func newTestClient(t *testing.T, identity string) *commandClient {
	t.Helper()
	store := &memoryStore{objects: make(map[string][]byte)}
	svc := usecase.NewKeyService(keycache.New(store), 1024)
	d := dispatcher.New(policy.NewEngine(testPrincipalA, testPrincipalB), svc)
	srv := httptest.NewServer(handler.NewRouter(
		handler.NewCommandHandler(d, 1<<20),
		handler.NewHealthHandler(okPinger{}),
	))
	t.Cleanup(srv.Close)

	return &commandClient{
		baseURL:  srv.URL + "/",
		http:     srv.Client(),
		login:    string(domain.LoginTrustedApp),
		identity: identity,
	}
}

func exportKey(t *testing.T, c *commandClient) []byte {
	t.Helper()
	result, err := c.invoke(context.Background(), domain.CommandExportSymmetricKey, []handler.ParamJSON{
		{Type: string(domain.ParamMemrefOutput), Size: domain.SymmetricKeySize},
	})
	require.NoError(t, err)
	require.Len(t, result[0].Data, domain.SymmetricKeySize)
	return result[0].Data
}

func TestCryptStream_RoundTrip(t *testing.T) {
	c := newTestClient(t, testPrincipalA)
	ctx := context.Background()

	_, err := c.invoke(ctx, domain.CommandGenerateSymmetricKey, nil)
	require.NoError(t, err)
	key := exportKey(t, c)

	var iv domain.IV
	copy(iv[:], bytes.Repeat([]byte{0x5a}, domain.BlockSize))

	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"shorter than a block", 5},
		{"exact chunk", 32},
		{"several chunks", 100},
		{"block aligned tail", 96},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plaintext := make([]byte, tt.size)
			for i := range plaintext {
				plaintext[i] = byte(i * 7)
			}
			opts := streamOptions{chunkSize: 32, pkcs7: true}

			var sealed bytes.Buffer
			lastIV, err := c.cryptStream(ctx, domain.CommandEncryptChunk, iv, bytes.NewReader(plaintext), &sealed, opts)
			require.NoError(t, err)

			// 一括のCBCと同じ暗号文になること
			padded := pkcs7Pad(append([]byte(nil), plaintext...))
			block, err := aes.NewCipher(key)
			require.NoError(t, err)
			want := make([]byte, len(padded))
			gocipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(want, padded)
			require.Equal(t, want, sealed.Bytes())
			require.Equal(t, want[len(want)-domain.BlockSize:], lastIV[:])

			var opened bytes.Buffer
			_, err = c.cryptStream(ctx, domain.CommandDecryptChunk, iv, bytes.NewReader(sealed.Bytes()), &opened, opts)
			require.NoError(t, err)
			require.Equal(t, plaintext, opened.Bytes())
		})
	}
}

func TestCryptStream_UnalignedWithoutPadding(t *testing.T) {
	c := newTestClient(t, testPrincipalA)
	ctx := context.Background()
	_, err := c.invoke(ctx, domain.CommandGenerateSymmetricKey, nil)
	require.NoError(t, err)

	_, err = c.cryptStream(ctx, domain.CommandEncryptChunk, domain.IV{}, bytes.NewReader(make([]byte, 20)), &bytes.Buffer{}, streamOptions{chunkSize: 32})
	require.Error(t, err)
}

func TestCryptStream_InvalidChunkSize(t *testing.T) {
	c := &commandClient{}
	_, err := c.cryptStream(context.Background(), domain.CommandEncryptChunk, domain.IV{}, bytes.NewReader(nil), &bytes.Buffer{}, streamOptions{chunkSize: 20})
	require.Error(t, err)
}

func TestInvoke_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no key yet", func(t *testing.T) {
		c := newTestClient(t, testPrincipalA)
		_, err := c.invoke(ctx, domain.CommandExportSymmetricKey, []handler.ParamJSON{
			{Type: string(domain.ParamMemrefOutput), Size: domain.SymmetricKeySize},
		})
		var apiErr *apiError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, domain.CodeBadState, apiErr.Code)
		require.Equal(t, http.StatusConflict, apiErr.Status)
	})

	t.Run("unknown caller", func(t *testing.T) {
		c := newTestClient(t, testStranger)
		_, err := c.invoke(ctx, domain.CommandGenerateSymmetricKey, nil)
		var apiErr *apiError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, domain.CodeAccessDenied, apiErr.Code)
		require.Equal(t, http.StatusForbidden, apiErr.Status)
	})

	t.Run("principal B cannot export", func(t *testing.T) {
		c := newTestClient(t, testPrincipalB)
		_, err := c.invoke(ctx, domain.CommandExportSymmetricKey, []handler.ParamJSON{
			{Type: string(domain.ParamMemrefOutput), Size: domain.SymmetricKeySize},
		})
		var apiErr *apiError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, domain.CodeAccessDenied, apiErr.Code)
	})

	t.Run("unreachable server", func(t *testing.T) {
		c := &commandClient{baseURL: "http://127.0.0.1:1", http: http.DefaultClient}
		_, err := c.invoke(ctx, domain.CommandGenerateSymmetricKey, nil)
		require.Error(t, err)
		var apiErr *apiError
		require.False(t, errors.As(err, &apiErr))
	})
}

func TestInvokeGrowing_RetriesWithReportedSize(t *testing.T) {
	c := newTestClient(t, testPrincipalA)
	ctx := context.Background()

	_, err := c.invoke(ctx, domain.CommandGenerateAsymmetricKey, nil)
	require.NoError(t, err)

	params := []handler.ParamJSON{{Type: string(domain.ParamMemrefOutput), Size: 16}}
	result, err := c.invokeGrowing(ctx, domain.CommandExportAsymmetricPublic, params)
	require.NoError(t, err)
	// 1024ビット鍵: 4 + 128 + 4 + 3
	require.Len(t, result[0].Data, 139)
}

func TestPKCS7(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		pad  int
	}{
		{"empty", nil, 16},
		{"one byte", []byte{1}, 15},
		{"full block", bytes.Repeat([]byte{2}, 16), 16},
		{"block plus one", bytes.Repeat([]byte{3}, 17), 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			padded := pkcs7Pad(append([]byte(nil), tt.in...))
			require.Len(t, padded, len(tt.in)+tt.pad)
			require.Zero(t, len(padded)%domain.BlockSize)

			got, err := pkcs7Unpad(padded)
			require.NoError(t, err)
			require.Equal(t, len(tt.in), len(got))
		})
	}

	invalid := [][]byte{
		nil,
		append(bytes.Repeat([]byte{0}, 15), 0),
		append(bytes.Repeat([]byte{0}, 15), 17),
		append(bytes.Repeat([]byte{0}, 14), 1, 2),
	}
	for _, b := range invalid {
		_, err := pkcs7Unpad(b)
		require.Error(t, err)
	}
}
