package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"key-manager-service/internal/domain"
	"key-manager-service/internal/handler"
)

// streamOptions はファイルをチャンク単位で暗号化・復号する際の設定。
type streamOptions struct {
	chunkSize int
	pkcs7     bool
}

// cryptStream はrの内容をチャンクコマンドで順に処理してwに書き込む。
// 各チャンクで返されたIVを次のチャンクに引き継ぎ、最後のIVを返す。
func (c *commandClient) cryptStream(ctx context.Context, cmd domain.Command, iv domain.IV, r io.Reader, w io.Writer, opts streamOptions) (domain.IV, error) {
	if opts.chunkSize <= 0 || opts.chunkSize%domain.BlockSize != 0 {
		return iv, fmt.Errorf("chunk size must be a positive multiple of %d", domain.BlockSize)
	}
	encrypt := cmd == domain.CommandEncryptChunk

	br := bufio.NewReaderSize(r, opts.chunkSize)
	buf := make([]byte, opts.chunkSize)
	for {
		n, err := io.ReadFull(br, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return iv, fmt.Errorf("reading input: %w", err)
		}
		last := err != nil
		if !last {
			if _, peekErr := br.Peek(1); peekErr == io.EOF {
				last = true
			}
		}

		chunk := buf[:n]
		if last && encrypt && opts.pkcs7 {
			chunk = pkcs7Pad(chunk)
		}
		if len(chunk) == 0 {
			return iv, nil
		}
		if len(chunk)%domain.BlockSize != 0 {
			return iv, fmt.Errorf("input is not a multiple of %d bytes; use --pkcs7", domain.BlockSize)
		}

		out, next, err := c.cryptChunk(ctx, cmd, iv, chunk)
		if err != nil {
			return iv, err
		}
		iv = next

		if last && !encrypt && opts.pkcs7 {
			if out, err = pkcs7Unpad(out); err != nil {
				return iv, err
			}
		}
		if _, err := w.Write(out); err != nil {
			return iv, fmt.Errorf("writing output: %w", err)
		}
		if last {
			return iv, nil
		}
	}
}

func (c *commandClient) cryptChunk(ctx context.Context, cmd domain.Command, iv domain.IV, chunk []byte) ([]byte, domain.IV, error) {
	result, err := c.invoke(ctx, cmd, []handler.ParamJSON{
		{Type: string(domain.ParamMemrefInput), Data: chunk},
		{Type: string(domain.ParamMemrefOutput), Size: len(chunk)},
		{Type: string(domain.ParamMemrefInout), Data: iv[:]},
	})
	if err != nil {
		return nil, iv, err
	}
	if len(result) < 3 || len(result[2].Data) != domain.BlockSize {
		return nil, iv, fmt.Errorf("server returned a malformed chunk result")
	}
	var next domain.IV
	copy(next[:], result[2].Data)
	return result[1].Data, next, nil
}

func pkcs7Pad(b []byte) []byte {
	pad := domain.BlockSize - len(b)%domain.BlockSize
	return append(b, bytes.Repeat([]byte{byte(pad)}, pad)...)
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("invalid padding")
	}
	pad := int(b[len(b)-1])
	if pad == 0 || pad > domain.BlockSize || pad > len(b) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, v := range b[len(b)-pad:] {
		if int(v) != pad {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-pad], nil
}
