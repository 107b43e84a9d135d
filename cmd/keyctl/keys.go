package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"key-manager-service/internal/cipher"
	"key-manager-service/internal/domain"
	"key-manager-service/internal/handler"
)

const defaultChunkSize = 64 * 1024

// aesCmd は対称鍵の管理コマンド。
func aesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "aes",
		Short:             "Manage the AES-256 key",
		PersistentPreRunE: requireClient,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generate a new AES-256 key inside the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.invoke(commandContext(cmd), domain.CommandGenerateSymmetricKey, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Generated AES key")
			return nil
		},
	})

	var keyHex, keyFile string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import a 32-byte AES key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := readInput(keyHex, keyFile)
			if err != nil {
				return err
			}
			_, err = client.invoke(commandContext(cmd), domain.CommandImportSymmetricKey, []handler.ParamJSON{
				{Type: string(domain.ParamMemrefInput), Data: key},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Imported AES key")
			return nil
		},
	}
	importCmd.Flags().StringVar(&keyHex, "hex", "", "Key as hex")
	importCmd.Flags().StringVar(&keyFile, "file", "", "File containing the raw key")
	importCmd.MarkFlagsOneRequired("hex", "file")
	importCmd.MarkFlagsMutuallyExclusive("hex", "file")
	cmd.AddCommand(importCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Export the AES key as hex",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.invokeGrowing(commandContext(cmd), domain.CommandExportSymmetricKey, []handler.ParamJSON{
				{Type: string(domain.ParamMemrefOutput), Size: domain.SymmetricKeySize},
			})
			if err != nil {
				return err
			}
			return printBytes(cmd, "key", result[0].Data)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "has",
		Short: "Report whether an AES key has been stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.invoke(commandContext(cmd), domain.CommandHasSymmetricKey, []handler.ParamJSON{
				{Type: string(domain.ParamValueOutput)},
			})
			if err != nil {
				return err
			}
			exists := result[0].A == 1
			if output == "json" {
				fmt.Fprintf(cmd.OutOrStdout(), "{\"exists\":%t}\n", exists)
				return nil
			}
			if exists {
				fmt.Fprintln(cmd.OutOrStdout(), "yes")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "no")
			}
			return nil
		},
	})

	return cmd
}

func encryptCmd() *cobra.Command {
	return chunkCmd("encrypt", "Encrypt a file with the stored AES key in CBC chunks", domain.CommandEncryptChunk)
}

func decryptCmd() *cobra.Command {
	return chunkCmd("decrypt", "Decrypt a file produced by encrypt", domain.CommandDecryptChunk)
}

func chunkCmd(use, short string, command domain.Command) *cobra.Command {
	var in, out, ivHex string
	var opts streamOptions
	cmd := &cobra.Command{
		Use:               use,
		Short:             short,
		PersistentPreRunE: requireClient,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			var iv domain.IV
			switch {
			case ivHex != "":
				b, err := hex.DecodeString(ivHex)
				if err != nil || len(b) != domain.BlockSize {
					return fmt.Errorf("--iv must be %d bytes of hex", domain.BlockSize)
				}
				copy(iv[:], b)
			case command == domain.CommandEncryptChunk:
				result, err := client.invoke(ctx, domain.CommandRandomBytes, []handler.ParamJSON{
					{Type: string(domain.ParamMemrefOutput), Size: domain.BlockSize},
				})
				if err != nil {
					return fmt.Errorf("generating iv: %w", err)
				}
				copy(iv[:], result[0].Data)
				fmt.Fprintf(cmd.ErrOrStderr(), "iv: %s\n", hex.EncodeToString(iv[:]))
			default:
				return fmt.Errorf("--iv is required")
			}

			src, err := openInput(in)
			if err != nil {
				return err
			}
			defer src.Close()
			dst, err := openOutput(cmd, out)
			if err != nil {
				return err
			}
			defer dst.Close()

			_, err = client.cryptStream(ctx, command, iv, src, dst, opts)
			return err
		},
	}
	cmd.Flags().StringVar(&in, "in", "-", "Input file (- for stdin)")
	cmd.Flags().StringVar(&out, "out", "-", "Output file (- for stdout)")
	cmd.Flags().StringVar(&ivHex, "iv", "", "Initial IV as hex (encrypt generates one when omitted)")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", defaultChunkSize, "Bytes per chunk command (multiple of 16)")
	cmd.Flags().BoolVar(&opts.pkcs7, "pkcs7", true, "Apply/remove PKCS#7 padding on the final chunk")
	return cmd
}

func randomCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:               "random",
		Short:             "Generate random bytes inside the service",
		PersistentPreRunE: requireClient,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.invoke(commandContext(cmd), domain.CommandRandomBytes, []handler.ParamJSON{
				{Type: string(domain.ParamMemrefOutput), Size: size},
			})
			if err != nil {
				return err
			}
			return printBytes(cmd, "random", result[0].Data)
		},
	}
	cmd.Flags().IntVar(&size, "size", 32, "Number of random bytes")
	return cmd
}

// rsaCmd はRSA鍵の管理コマンド。
func rsaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "rsa",
		Short:             "Manage the RSA keypair",
		PersistentPreRunE: requireClient,
	}

	var bits uint32
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new RSA keypair inside the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := []handler.ParamJSON{{Type: string(domain.ParamNone)}}
			if bits > 0 {
				params[0] = handler.ParamJSON{Type: string(domain.ParamValueInput), A: bits}
			}
			if _, err := client.invoke(commandContext(cmd), domain.CommandGenerateAsymmetricKey, params); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Generated RSA keypair")
			return nil
		},
	}
	generateCmd.Flags().Uint32Var(&bits, "bits", 0, "Key size in bits (server default when omitted)")
	cmd.AddCommand(generateCmd)

	var blobFile string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import serialized RSA components",
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(blobFile)
			if err != nil {
				return fmt.Errorf("reading %s: %w", blobFile, err)
			}
			_, err = client.invoke(commandContext(cmd), domain.CommandImportAsymmetricKey, []handler.ParamJSON{
				{Type: string(domain.ParamMemrefInput), Data: blob},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Imported RSA keypair")
			return nil
		},
	}
	importCmd.Flags().StringVar(&blobFile, "file", "", "File with length-prefixed modulus, public and private exponent")
	importCmd.MarkFlagRequired("file")
	cmd.AddCommand(importCmd)

	var out string
	exportCmd := &cobra.Command{
		Use:   "export-public",
		Short: "Export the RSA public components",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.invokeGrowing(commandContext(cmd), domain.CommandExportAsymmetricPublic, []handler.ParamJSON{
				{Type: string(domain.ParamMemrefOutput), Size: 256},
			})
			if err != nil {
				return err
			}
			if out != "" {
				return os.WriteFile(out, result[0].Data, 0o644)
			}
			return printBytes(cmd, "public_key", result[0].Data)
		},
	}
	exportCmd.Flags().StringVar(&out, "out", "", "Write the raw blob to a file instead of printing hex")
	cmd.AddCommand(exportCmd)

	return cmd
}

// modelCmd はモデルファイルの一括暗号化コマンド。
func modelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "model",
		Short:             "Seal or open a whole model file (IV prepended, zero padded)",
		PersistentPreRunE: requireClient,
	}

	var sealIn, sealOut string
	sealCmd := &cobra.Command{
		Use:   "seal",
		Short: "Encrypt a model file with a fresh random IV",
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := os.ReadFile(sealIn)
			if err != nil {
				return fmt.Errorf("reading %s: %w", sealIn, err)
			}
			result, err := client.invoke(commandContext(cmd), domain.CommandSealModel, []handler.ParamJSON{
				{Type: string(domain.ParamMemrefInput), Data: plaintext},
				{Type: string(domain.ParamMemrefOutput), Size: cipher.SealedLen(len(plaintext))},
			})
			if err != nil {
				return err
			}
			return os.WriteFile(sealOut, result[1].Data, 0o600)
		},
	}
	sealCmd.Flags().StringVar(&sealIn, "in", "", "Plaintext model file")
	sealCmd.Flags().StringVar(&sealOut, "out", "", "Sealed output file")
	sealCmd.MarkFlagRequired("in")
	sealCmd.MarkFlagRequired("out")
	cmd.AddCommand(sealCmd)

	var openIn, openOut string
	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Decrypt a sealed model file (zero padding is kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			sealed, err := os.ReadFile(openIn)
			if err != nil {
				return fmt.Errorf("reading %s: %w", openIn, err)
			}
			size := len(sealed) - domain.BlockSize
			if size < 0 {
				size = 0
			}
			result, err := client.invoke(commandContext(cmd), domain.CommandOpenModel, []handler.ParamJSON{
				{Type: string(domain.ParamMemrefInput), Data: sealed},
				{Type: string(domain.ParamMemrefOutput), Size: size},
			})
			if err != nil {
				return err
			}
			return os.WriteFile(openOut, result[1].Data, 0o600)
		},
	}
	openCmd.Flags().StringVar(&openIn, "in", "", "Sealed model file")
	openCmd.Flags().StringVar(&openOut, "out", "", "Plaintext output file")
	openCmd.MarkFlagRequired("in")
	openCmd.MarkFlagRequired("out")
	cmd.AddCommand(openCmd)

	return cmd
}

func readInput(hexValue, file string) ([]byte, error) {
	if hexValue != "" {
		b, err := hex.DecodeString(strings.TrimSpace(hexValue))
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	return b, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, nil
}
