// Package keycache は鍵のメモリキャッシュを提供する。
//
// キャッシュ済みの鍵はmemguardのEnclaveで暗号化して保持し、
// 更新は必ず永続ストアへの書き込みが成功してからキャッシュに反映する。
package keycache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"key-manager-service/internal/domain"
	"key-manager-service/internal/keycodec"
)

// ObjectStore は鍵オブジェクトの永続ストア。
type ObjectStore interface {
	Read(ctx context.Context, objectID string) ([]byte, error)
	Write(ctx context.Context, objectID string, plaintext []byte) error
	Exists(ctx context.Context, objectID string) (bool, error)
}

// Cache は対称鍵とRSA鍵のキャッシュ。鍵ごとに独立したロックを持つ。
type Cache struct {
	store ObjectStore

	symMu sync.Mutex
	sym   *memguard.Enclave

	asymMu sync.Mutex
	asym   *memguard.Enclave
}

// New はCacheを生成する。
func New(store ObjectStore) *Cache {
	return &Cache{store: store}
}

// LoadSymmetricKey は対称鍵を返す。未キャッシュなら永続ストアから読み込む。
// 鍵が未作成なら ErrBadState、長さが不正なら ErrCorruptObject。
func (c *Cache) LoadSymmetricKey(ctx context.Context) (*domain.SymmetricKey, error) {
	c.symMu.Lock()
	defer c.symMu.Unlock()

	if c.sym == nil {
		data, err := c.readObject(ctx, domain.SymmetricKeyObjectID)
		if err != nil {
			return nil, err
		}
		if len(data) != domain.SymmetricKeySize {
			memguard.WipeBytes(data)
			return nil, fmt.Errorf("%w: symmetric key has %d bytes", domain.ErrCorruptObject, len(data))
		}
		c.sym = memguard.NewEnclave(data)
	}

	buf, err := c.sym.Open()
	if err != nil {
		return nil, fmt.Errorf("opening symmetric key enclave: %w", err)
	}
	defer buf.Destroy()

	var key domain.SymmetricKey
	copy(key[:], buf.Bytes())
	return &key, nil
}

// UpdateSymmetricKey は対称鍵を永続化してからキャッシュを置き換える。
// 永続化に失敗した場合、キャッシュは変更しない。
func (c *Cache) UpdateSymmetricKey(ctx context.Context, key *domain.SymmetricKey) error {
	c.symMu.Lock()
	defer c.symMu.Unlock()

	if err := c.store.Write(ctx, domain.SymmetricKeyObjectID, key[:]); err != nil {
		return fmt.Errorf("persisting symmetric key: %w", err)
	}
	// NewEnclaveは引数を消去するためコピーを渡す
	material := make([]byte, domain.SymmetricKeySize)
	copy(material, key[:])
	c.sym = memguard.NewEnclave(material)
	return nil
}

// SymmetricKeyExists は永続ストアに対称鍵があるかを返す。
func (c *Cache) SymmetricKeyExists(ctx context.Context) (bool, error) {
	return c.store.Exists(ctx, domain.SymmetricKeyObjectID)
}

// LoadAsymmetricKey はRSA鍵の構成要素を返す。未キャッシュなら永続ストアから読み込む。
func (c *Cache) LoadAsymmetricKey(ctx context.Context) (*domain.AsymmetricKeyComponents, error) {
	c.asymMu.Lock()
	defer c.asymMu.Unlock()

	if c.asym == nil {
		data, err := c.readObject(ctx, domain.AsymmetricKeyObjectID)
		if err != nil {
			return nil, err
		}
		if _, err := keycodec.Deserialize(data); err != nil {
			memguard.WipeBytes(data)
			return nil, fmt.Errorf("%w: %v", domain.ErrCorruptObject, err)
		}
		c.asym = memguard.NewEnclave(data)
	}

	buf, err := c.asym.Open()
	if err != nil {
		return nil, fmt.Errorf("opening asymmetric key enclave: %w", err)
	}
	defer buf.Destroy()

	// Deserializeは値をコピーして返すため、バッファ破棄後も有効
	components, err := keycodec.Deserialize(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptObject, err)
	}
	return components, nil
}

// UpdateAsymmetricKey はRSA鍵を永続化してからキャッシュを置き換える。
func (c *Cache) UpdateAsymmetricKey(ctx context.Context, components *domain.AsymmetricKeyComponents) error {
	c.asymMu.Lock()
	defer c.asymMu.Unlock()

	blob := keycodec.Serialize(components)
	if err := c.store.Write(ctx, domain.AsymmetricKeyObjectID, blob); err != nil {
		memguard.WipeBytes(blob)
		return fmt.Errorf("persisting asymmetric key: %w", err)
	}
	c.asym = memguard.NewEnclave(blob)
	return nil
}

func (c *Cache) readObject(ctx context.Context, objectID string) ([]byte, error) {
	data, err := c.store.Read(ctx, objectID)
	if errors.Is(err, domain.ErrItemNotFound) {
		return nil, fmt.Errorf("%w: %s has not been created", domain.ErrBadState, objectID)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
