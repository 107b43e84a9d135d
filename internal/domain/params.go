package domain

import "fmt"

// ParamType はパラメータスロットの種別を表す。
type ParamType string

const (
	ParamNone         ParamType = "none"
	ParamValueInput   ParamType = "value_input"
	ParamValueOutput  ParamType = "value_output"
	ParamValueInout   ParamType = "value_inout"
	ParamMemrefInput  ParamType = "memref_input"
	ParamMemrefOutput ParamType = "memref_output"
	ParamMemrefInout  ParamType = "memref_inout"
)

// ParamCount はコマンドあたりのパラメータスロット数。
const ParamCount = 4

// Param は1つのパラメータスロットを表す。
// メモリ参照の場合、len(Buffer)が呼び出し元の宣言した容量で、
// ハンドラは実際に書き込んだバイト数をSizeに設定する。
type Param struct {
	Type   ParamType
	Buffer []byte
	Size   int
	A      uint32
	B      uint32
}

// Params はコマンドに渡されるパラメータ一式。
type Params [ParamCount]Param

// IsMemref はメモリ参照型かどうかを返す。
func (p *Param) IsMemref() bool {
	switch p.Type {
	case ParamMemrefInput, ParamMemrefOutput, ParamMemrefInout:
		return true
	}
	return false
}

// IsValue は値型かどうかを返す。
func (p *Param) IsValue() bool {
	switch p.Type {
	case ParamValueInput, ParamValueOutput, ParamValueInout:
		return true
	}
	return false
}

// Memref はメモリ参照のバッファを返す。メモリ参照でなければErrBadParameters。
func (p *Param) Memref() ([]byte, error) {
	if !p.IsMemref() {
		return nil, ErrBadParameters
	}
	return p.Buffer, nil
}

// OutputMemref は書き込み可能なメモリ参照のバッファを返す。
// 入力専用のメモリ参照や値型はErrBadParameters。
func (p *Param) OutputMemref() ([]byte, error) {
	if p.Type != ParamMemrefOutput && p.Type != ParamMemrefInout {
		return nil, fmt.Errorf("%w: %s is not a writable memref", ErrBadParameters, p.Type)
	}
	return p.Buffer, nil
}

// SetUpdatedSize は書き込んだバイト数を設定する。容量を超える値は設定できない。
func (p *Param) SetUpdatedSize(n int) error {
	if n < 0 || n > len(p.Buffer) {
		return ErrShortBuffer
	}
	p.Size = n
	return nil
}

// SetValue は値型パラメータに結果を設定する。
func (p *Param) SetValue(a, b uint32) error {
	if p.Type != ParamValueOutput && p.Type != ParamValueInout {
		return ErrBadParameters
	}
	p.A, p.B = a, b
	return nil
}

// RequireSize は容量不足を通知する。必要なバイト数をSizeに設定し、ErrShortBufferを返す。
// 呼び出し元はSize以上のバッファで再試行できる。
func (p *Param) RequireSize(n int) error {
	p.Size = n
	return ErrShortBuffer
}
