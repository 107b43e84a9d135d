// Package dispatcher はコマンドコードを認可付きでハンドラに振り分ける。
//
// 各コマンドはテーブルで要求ポリシーとハンドラが決まっており、
// ポリシー検査を通過するまで鍵の読み込みや乱数生成などの副作用は一切起きない。
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"key-manager-service/internal/domain"
	"key-manager-service/internal/middleware"
)

const tracerName = "key-manager-service/internal/dispatcher"

// Authorizer はセッションがポリシーを満たすか判定する。
type Authorizer interface {
	Authorize(session domain.Session, policy domain.Policy) error
}

// KeyOperations はコマンドが呼び出す鍵操作。
type KeyOperations interface {
	GenerateSymmetricKey(ctx context.Context) error
	ImportSymmetricKey(ctx context.Context, material []byte) error
	ExportSymmetricKey(ctx context.Context, out []byte) (int, error)
	EncryptChunk(ctx context.Context, iv domain.IV, input, output []byte) (int, domain.IV, error)
	DecryptChunk(ctx context.Context, iv domain.IV, input, output []byte) (int, domain.IV, error)
	RandomBytes(buf []byte) error
	HasSymmetricKey(ctx context.Context) (bool, error)
	GenerateAsymmetricKey(ctx context.Context, bits int) error
	ImportAsymmetricKey(ctx context.Context, blob []byte) error
	ExportAsymmetricPublic(ctx context.Context, out []byte) (int, error)
	SealModel(ctx context.Context, plaintext, out []byte) (int, error)
	OpenModel(ctx context.Context, sealed, out []byte) (int, error)
}

type handlerFunc func(ctx context.Context, params *domain.Params) error

type entry struct {
	policy domain.Policy
	handle handlerFunc
}

// Dispatcher はコマンドの認可と実行を行う。
type Dispatcher struct {
	authorizer Authorizer
	keys       KeyOperations
	table      map[domain.Command]entry
	tracer     trace.Tracer
}

// New はコマンドテーブルを構築してDispatcherを生成する。
func New(authorizer Authorizer, keys KeyOperations) *Dispatcher {
	d := &Dispatcher{
		authorizer: authorizer,
		keys:       keys,
		tracer:     otel.Tracer(tracerName),
	}
	d.table = map[domain.Command]entry{
		domain.CommandGenerateSymmetricKey:   {domain.PolicyPrincipalAOnly, d.generateSymmetricKey},
		domain.CommandImportSymmetricKey:     {domain.PolicyPrincipalAOnly, d.importSymmetricKey},
		domain.CommandExportSymmetricKey:     {domain.PolicyPrincipalAOrB, d.exportSymmetricKey},
		domain.CommandEncryptChunk:           {domain.PolicyPrincipalAOnly, d.encryptChunk},
		domain.CommandDecryptChunk:           {domain.PolicyPrincipalAOnly, d.decryptChunk},
		domain.CommandRandomBytes:            {domain.PolicyPrincipalAOnly, d.randomBytes},
		domain.CommandHasSymmetricKey:        {domain.PolicyPrincipalAOrB, d.hasSymmetricKey},
		domain.CommandGenerateAsymmetricKey:  {domain.PolicyPrincipalAOnly, d.generateAsymmetricKey},
		domain.CommandImportAsymmetricKey:    {domain.PolicyPrincipalAOnly, d.importAsymmetricKey},
		domain.CommandExportAsymmetricPublic: {domain.PolicyPrincipalAOrB, d.exportAsymmetricPublic},
		domain.CommandSealModel:              {domain.PolicyPrincipalAOnly, d.sealModel},
		domain.CommandOpenModel:              {domain.PolicyPrincipalAOnly, d.openModel},
	}
	return d
}

// PolicyFor はコマンドが要求するポリシーを返す。
func (d *Dispatcher) PolicyFor(cmd domain.Command) (domain.Policy, bool) {
	e, ok := d.table[cmd]
	return e.policy, ok
}

// Invoke はcodeのコマンドを認可したうえで実行する。
// 出力パラメータにはハンドラが書き込んだバイト数がSizeとして設定される。
func (d *Dispatcher) Invoke(ctx context.Context, session domain.Session, code uint32, params *domain.Params) (err error) {
	cmd := domain.Command(code)

	ctx, span := d.tracer.Start(ctx, "dispatcher.Invoke",
		trace.WithAttributes(
			attribute.Int64("command.code", int64(code)),
			attribute.String("command.name", cmd.String()),
		),
	)
	defer func() {
		result := middleware.ResultSuccess
		if err != nil {
			result = domain.ErrorCode(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.SetAttributes(attribute.String("command.result", result))
		middleware.WriteAuditLog(ctx, cmd.String(), session.Caller(), result)
		span.End()
	}()

	e, ok := d.table[cmd]
	if !ok {
		return fmt.Errorf("%w: command %d", domain.ErrNotSupported, code)
	}
	span.SetAttributes(attribute.String("command.policy", e.policy.String()))

	if err := d.authorizer.Authorize(session, e.policy); err != nil {
		return err
	}
	return e.handle(ctx, params)
}

func (d *Dispatcher) generateSymmetricKey(ctx context.Context, _ *domain.Params) error {
	return d.keys.GenerateSymmetricKey(ctx)
}

func (d *Dispatcher) importSymmetricKey(ctx context.Context, params *domain.Params) error {
	material, err := params[0].Memref()
	if err != nil {
		return err
	}
	return d.keys.ImportSymmetricKey(ctx, material)
}

func (d *Dispatcher) exportSymmetricKey(ctx context.Context, params *domain.Params) error {
	out, err := params[0].OutputMemref()
	if err != nil {
		return err
	}
	n, err := d.keys.ExportSymmetricKey(ctx, out)
	return setWritten(&params[0], n, err)
}

// chunkParams は [0]=入力, [1]=出力, [2]=IV(入出力) を取り出す。
func chunkParams(params *domain.Params) (input, output []byte, iv domain.IV, err error) {
	if input, err = params[0].Memref(); err != nil {
		return
	}
	if output, err = params[1].OutputMemref(); err != nil {
		return
	}
	ivBuf, err := params[2].OutputMemref()
	if err != nil {
		return
	}
	if len(ivBuf) < domain.BlockSize {
		err = fmt.Errorf("%w: iv buffer of %d bytes", domain.ErrBadParameters, len(ivBuf))
		return
	}
	copy(iv[:], ivBuf)
	return
}

func (d *Dispatcher) encryptChunk(ctx context.Context, params *domain.Params) error {
	input, output, iv, err := chunkParams(params)
	if err != nil {
		return err
	}
	n, next, err := d.keys.EncryptChunk(ctx, iv, input, output)
	if errors.Is(err, domain.ErrShortBuffer) {
		return params[1].RequireSize(len(input))
	}
	if err != nil {
		return err
	}
	return writeChunkResult(params, n, next)
}

func (d *Dispatcher) decryptChunk(ctx context.Context, params *domain.Params) error {
	input, output, iv, err := chunkParams(params)
	if err != nil {
		return err
	}
	n, next, err := d.keys.DecryptChunk(ctx, iv, input, output)
	if errors.Is(err, domain.ErrShortBuffer) {
		return params[1].RequireSize(len(input))
	}
	if err != nil {
		return err
	}
	return writeChunkResult(params, n, next)
}

func writeChunkResult(params *domain.Params, n int, next domain.IV) error {
	if err := params[1].SetUpdatedSize(n); err != nil {
		return err
	}
	copy(params[2].Buffer, next[:])
	return params[2].SetUpdatedSize(domain.BlockSize)
}

func (d *Dispatcher) randomBytes(_ context.Context, params *domain.Params) error {
	buf, err := params[0].OutputMemref()
	if err != nil {
		return err
	}
	if err := d.keys.RandomBytes(buf); err != nil {
		return err
	}
	return params[0].SetUpdatedSize(len(buf))
}

func (d *Dispatcher) hasSymmetricKey(ctx context.Context, params *domain.Params) error {
	p := &params[0]
	if p.Type != domain.ParamValueOutput && p.Type != domain.ParamValueInout {
		return fmt.Errorf("%w: param 0 must be a value output", domain.ErrBadParameters)
	}
	exists, err := d.keys.HasSymmetricKey(ctx)
	if err != nil {
		return err
	}
	var flag uint32
	if exists {
		flag = 1
	}
	return p.SetValue(flag, 0)
}

func (d *Dispatcher) generateAsymmetricKey(ctx context.Context, params *domain.Params) error {
	// ビット長は任意。指定がなければ設定値を使う。
	var bits int
	switch p := &params[0]; {
	case p.Type == domain.ParamValueInput || p.Type == domain.ParamValueInout:
		bits = int(p.A)
	case p.Type != "" && p.Type != domain.ParamNone:
		return fmt.Errorf("%w: param 0 must be a value input", domain.ErrBadParameters)
	}
	return d.keys.GenerateAsymmetricKey(ctx, bits)
}

func (d *Dispatcher) importAsymmetricKey(ctx context.Context, params *domain.Params) error {
	blob, err := params[0].Memref()
	if err != nil {
		return err
	}
	return d.keys.ImportAsymmetricKey(ctx, blob)
}

func (d *Dispatcher) exportAsymmetricPublic(ctx context.Context, params *domain.Params) error {
	out, err := params[0].OutputMemref()
	if err != nil {
		return err
	}
	n, err := d.keys.ExportAsymmetricPublic(ctx, out)
	return setWritten(&params[0], n, err)
}

func (d *Dispatcher) sealModel(ctx context.Context, params *domain.Params) error {
	input, err := params[0].Memref()
	if err != nil {
		return err
	}
	out, err := params[1].OutputMemref()
	if err != nil {
		return err
	}
	n, err := d.keys.SealModel(ctx, input, out)
	return setWritten(&params[1], n, err)
}

func (d *Dispatcher) openModel(ctx context.Context, params *domain.Params) error {
	input, err := params[0].Memref()
	if err != nil {
		return err
	}
	out, err := params[1].OutputMemref()
	if err != nil {
		return err
	}
	n, err := d.keys.OpenModel(ctx, input, out)
	return setWritten(&params[1], n, err)
}

// setWritten は書き込みバイト数を設定する。容量不足の場合は必要サイズを通知する。
func setWritten(p *domain.Param, n int, err error) error {
	if errors.Is(err, domain.ErrShortBuffer) {
		return p.RequireSize(n)
	}
	if err != nil {
		return err
	}
	return p.SetUpdatedSize(n)
}
