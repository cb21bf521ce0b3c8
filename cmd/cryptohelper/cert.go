package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dark-bio/crypto-fl/x509"
	"github.com/dark-bio/crypto-fl/xdsa"
	"github.com/dark-bio/crypto-fl/xhpke"
)

type issueRequest struct {
	SecretKey   string `json:"secret_key"`
	SubjectKey  string `json:"subject_key"`
	SubjectName string `json:"subject_name"`
	IssuerName  string `json:"issuer_name"`
	NotBefore   uint64 `json:"not_before"`
	NotAfter    uint64 `json:"not_after"`
	IsCA        bool   `json:"is_ca,omitempty"`
	PathLen     *uint8 `json:"path_len,omitempty"`
}

type issueResponse struct {
	Certificate string `json:"certificate"`
}

type certVerifyRequest struct {
	PublicKey   string `json:"public_key"`
	Certificate string `json:"certificate"`
}

type certVerifyResponse struct {
	Serial         string `json:"serial"`
	SubjectName    string `json:"subject_name"`
	IssuerName     string `json:"issuer_name"`
	NotBefore      uint64 `json:"not_before"`
	NotAfter       uint64 `json:"not_after"`
	IsCA           bool   `json:"is_ca"`
	PathLen        *uint8 `json:"path_len,omitempty"`
	KeyAlgorithm   string `json:"key_algorithm"`
	PublicKey      []byte `json:"public_key"`
	SubjectKeyID   []byte `json:"subject_key_id"`
	AuthorityKeyID []byte `json:"authority_key_id"`
}

func newCertCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Issue and verify certificates",
	}
	cmd.AddCommand(newCertIssueCmd(e), newCertVerifyCmd(e))
	return cmd
}

func newCertIssueCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "issue",
		Short: "Issue a certificate for an xDSA or xHPKE public key",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var req issueRequest
			if err := e.decode(&req); err != nil {
				return err
			}
			issuer, err := xdsa.ParseSecretKeyPEM(req.SecretKey)
			if err != nil {
				return err
			}
			defer issuer.Destroy()
			subject, err := parseSubject(req.SubjectKey)
			if err != nil {
				return err
			}
			cert, err := x509.IssuePEM(subject, issuer, &x509.Params{
				SubjectName: req.SubjectName,
				IssuerName:  req.IssuerName,
				NotBefore:   req.NotBefore,
				NotAfter:    req.NotAfter,
				IsCA:        req.IsCA,
				PathLen:     req.PathLen,
			})
			if err != nil {
				return err
			}
			e.log.Debug("issued certificate", "subject", req.SubjectName, "issuer_fingerprint", issuer.Fingerprint().String())
			return e.encode(issueResponse{Certificate: cert})
		},
	}
}

func newCertVerifyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify a certificate against its issuer",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var req certVerifyRequest
			if err := e.decode(&req); err != nil {
				return err
			}
			issuer, err := xdsa.ParsePublicKeyPEM(req.PublicKey)
			if err != nil {
				return err
			}
			c, err := x509.Verify([]byte(req.Certificate), issuer)
			if err != nil {
				return err
			}
			return e.encode(certVerifyResponse{
				Serial:         c.Serial.Text(16),
				SubjectName:    c.SubjectName,
				IssuerName:     c.IssuerName,
				NotBefore:      c.NotBefore,
				NotAfter:       c.NotAfter,
				IsCA:           c.IsCA,
				PathLen:        c.PathLen,
				KeyAlgorithm:   c.KeyAlgorithm.String(),
				PublicKey:      c.PublicKey,
				SubjectKeyID:   c.SubjectKeyID,
				AuthorityKeyID: c.AuthorityKeyID,
			})
		},
	}
}

// parseSubject accepts either an xDSA or an xHPKE public key.
func parseSubject(pemText string) (x509.Subject, error) {
	if pk, err := xdsa.ParsePublicKeyPEM(pemText); err == nil {
		return pk, nil
	}
	pk, err := xhpke.ParsePublicKeyPEM(pemText)
	if err != nil {
		return nil, fmt.Errorf("subject key is neither xDSA nor xHPKE: %w", err)
	}
	return pk, nil
}
