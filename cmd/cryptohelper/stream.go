package main

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dark-bio/crypto-fl/stream"
)

func encodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode --key: %w", err)
	}
	return key, nil
}

func newStreamCmd(e *env) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Encrypt or decrypt raw stdin to stdout in chunks",
	}
	cmd.PersistentFlags().StringVar(&key, "key", "", "base64 stream key")
	_ = cmd.MarkPersistentFlagRequired("key")

	encrypt := &cobra.Command{
		Use:  "encrypt",
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			k, err := decodeKey(key)
			if err != nil {
				return err
			}
			defer clear(k)

			w, err := stream.NewEncryptor(k, e.cfg.Stdout)
			if err != nil {
				return err
			}
			n, err := io.Copy(w, e.cfg.Stdin)
			if err != nil {
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			e.log.Debug("stream encrypted", "in_bytes", n, "out_bytes", stream.EncryptedSize(n))
			return nil
		},
	}
	decrypt := &cobra.Command{
		Use:  "decrypt",
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			k, err := decodeKey(key)
			if err != nil {
				return err
			}
			defer clear(k)

			r, err := stream.NewDecryptor(k, e.cfg.Stdin)
			if err != nil {
				return err
			}
			n, err := io.Copy(e.cfg.Stdout, r)
			if err != nil {
				return err
			}
			e.log.Debug("stream decrypted", "bytes", n)
			return nil
		},
	}
	cmd.AddCommand(encrypt, decrypt)
	return cmd
}
