package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dark-bio/crypto-fl/cose"
	"github.com/dark-bio/crypto-fl/stream"
	"github.com/dark-bio/crypto-fl/xdsa"
	"github.com/dark-bio/crypto-fl/xhpke"
)

type keyPair struct {
	SecretKey   string `json:"secret_key"`
	PublicKey   string `json:"public_key,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

type signRequest struct {
	SecretKey string `json:"secret_key"`
	Payload   []byte `json:"payload,omitempty"`
	AAD       []byte `json:"aad,omitempty"`
	Detached  bool   `json:"detached,omitempty"`
}

type verifyRequest struct {
	PublicKey string `json:"public_key"`
	Message   []byte `json:"message"`
	AAD       []byte `json:"aad,omitempty"`
	Detached  bool   `json:"detached,omitempty"`
}

type sealRequest struct {
	SecretKey string `json:"secret_key"`
	PublicKey string `json:"public_key"`
	Payload   []byte `json:"payload,omitempty"`
	AAD       []byte `json:"aad,omitempty"`
}

type openRequest struct {
	SecretKey string `json:"secret_key"`
	PublicKey string `json:"public_key"`
	Message   []byte `json:"message"`
	AAD       []byte `json:"aad,omitempty"`
}

type encryptRequest struct {
	PublicKey string `json:"public_key"`
	Message   []byte `json:"message"`
	AAD       []byte `json:"aad,omitempty"`
}

type decryptRequest struct {
	SecretKey string `json:"secret_key"`
	Message   []byte `json:"message"`
	AAD       []byte `json:"aad,omitempty"`
}

type inspectRequest struct {
	Message []byte `json:"message"`
}

type messageResponse struct {
	Message []byte `json:"message"`
}

type payloadResponse struct {
	Payload []byte `json:"payload"`
}

type inspectResponse struct {
	Type      string  `json:"type"`
	Signer    string  `json:"signer,omitempty"`
	Recipient string  `json:"recipient,omitempty"`
	Timestamp *uint64 `json:"timestamp,omitempty"`
	Payload   []byte  `json:"payload,omitempty"`
	Detached  bool    `json:"detached,omitempty"`
}

func newKeygenCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "keygen xdsa|xhpke|stream",
		Short:     "Generate a key",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"xdsa", "xhpke", "stream"},
		RunE: func(_ *cobra.Command, args []string) error {
			var out keyPair
			switch args[0] {
			case "xdsa":
				sk, err := xdsa.GenerateKey()
				if err != nil {
					return err
				}
				defer sk.Destroy()
				out = keyPair{SecretKey: sk.MarshalPEM(), PublicKey: sk.PublicKey().MarshalPEM(), Fingerprint: sk.Fingerprint().String()}
			case "xhpke":
				sk, err := xhpke.GenerateKey()
				if err != nil {
					return err
				}
				defer sk.Destroy()
				out = keyPair{SecretKey: sk.MarshalPEM(), PublicKey: sk.PublicKey().MarshalPEM(), Fingerprint: sk.Fingerprint().String()}
			case "stream":
				key, err := stream.GenerateKey()
				if err != nil {
					return err
				}
				out = keyPair{SecretKey: encodeKey(key)}
			default:
				return fmt.Errorf("unknown key type %q", args[0])
			}
			e.log.Debug("generated key", "type", args[0], "fingerprint", out.Fingerprint)
			return e.encode(out)
		},
	}
}

func newSignCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sign",
		Short: "Sign a payload into a COSE_Sign1 envelope",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var req signRequest
			if err := e.decode(&req); err != nil {
				return err
			}
			sk, err := xdsa.ParseSecretKeyPEM(req.SecretKey)
			if err != nil {
				return err
			}
			defer sk.Destroy()

			var msg []byte
			if req.Detached {
				msg, err = cose.SignDetached(req.AAD, sk, e.domain)
			} else {
				msg, err = cose.Sign(req.Payload, req.AAD, sk, e.domain)
			}
			if err != nil {
				return err
			}
			e.log.Debug("signed", "signer_fingerprint", sk.Fingerprint().String(), "detached", req.Detached, "size", len(msg))
			return e.encode(messageResponse{Message: msg})
		},
	}
}

func newVerifyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify a COSE_Sign1 envelope",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var req verifyRequest
			if err := e.decode(&req); err != nil {
				return err
			}
			pk, err := xdsa.ParsePublicKeyPEM(req.PublicKey)
			if err != nil {
				return err
			}
			if req.Detached {
				if err := cose.VerifyDetached(req.Message, req.AAD, pk, e.domain, e.options...); err != nil {
					return err
				}
				return e.encode(payloadResponse{Payload: []byte{}})
			}
			payload, err := cose.Verify(req.Message, req.AAD, pk, e.domain, e.options...)
			if err != nil {
				return err
			}
			return e.encode(payloadResponse{Payload: payload})
		},
	}
}

func newSealCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "seal",
		Short: "Sign and encrypt a payload",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var req sealRequest
			if err := e.decode(&req); err != nil {
				return err
			}
			sk, err := xdsa.ParseSecretKeyPEM(req.SecretKey)
			if err != nil {
				return err
			}
			defer sk.Destroy()
			pk, err := xhpke.ParsePublicKeyPEM(req.PublicKey)
			if err != nil {
				return err
			}
			msg, err := cose.Seal(req.Payload, req.AAD, sk, pk, e.domain)
			if err != nil {
				return err
			}
			e.log.Debug("sealed", "recipient_fingerprint", pk.Fingerprint().String(), "size", len(msg))
			return e.encode(messageResponse{Message: msg})
		},
	}
}

func newOpenCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Decrypt and verify a sealed envelope",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var req openRequest
			if err := e.decode(&req); err != nil {
				return err
			}
			sk, err := xhpke.ParseSecretKeyPEM(req.SecretKey)
			if err != nil {
				return err
			}
			defer sk.Destroy()
			pk, err := xdsa.ParsePublicKeyPEM(req.PublicKey)
			if err != nil {
				return err
			}
			payload, err := cose.Open(req.Message, req.AAD, sk, pk, e.domain, e.options...)
			if err != nil {
				return err
			}
			return e.encode(payloadResponse{Payload: payload})
		},
	}
}

func newEncryptCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a signed envelope for a recipient",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var req encryptRequest
			if err := e.decode(&req); err != nil {
				return err
			}
			pk, err := xhpke.ParsePublicKeyPEM(req.PublicKey)
			if err != nil {
				return err
			}
			msg, err := cose.Encrypt(req.Message, req.AAD, pk, e.domain)
			if err != nil {
				return err
			}
			return e.encode(messageResponse{Message: msg})
		},
	}
}

func newDecryptCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt an envelope without verifying the inner signature",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var req decryptRequest
			if err := e.decode(&req); err != nil {
				return err
			}
			sk, err := xhpke.ParseSecretKeyPEM(req.SecretKey)
			if err != nil {
				return err
			}
			defer sk.Destroy()
			msg, err := cose.Decrypt(req.Message, req.AAD, sk, e.domain)
			if err != nil {
				return err
			}
			return e.encode(messageResponse{Message: msg})
		},
	}
}

func newInspectCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the unauthenticated headers of an envelope",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var req inspectRequest
			if err := e.decode(&req); err != nil {
				return err
			}
			out, err := inspect(req.Message)
			if err != nil {
				return err
			}
			return e.encode(out)
		},
	}
}

func inspect(msg []byte) (*inspectResponse, error) {
	if fp, err := cose.Recipient(msg); err == nil {
		return &inspectResponse{Type: "encrypt0", Recipient: fp.String()}, nil
	}
	fp, err := cose.Signer(msg)
	if err != nil {
		return nil, err
	}
	ts, err := cose.Timestamp(msg)
	if err != nil {
		return nil, err
	}
	out := &inspectResponse{Type: "sign1", Signer: fp.String(), Timestamp: &ts}
	if payload, err := cose.Peek(msg); err == nil {
		out.Payload = payload
	} else {
		out.Detached = true
	}
	return out, nil
}
