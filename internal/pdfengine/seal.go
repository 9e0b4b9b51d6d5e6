package pdfengine

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/tandatangan/tandatangan/backend/go-services/pkg/logger"
)

// Seal is the platform signing identity.
type Seal struct {
	Signer      crypto.Signer
	Certificate *x509.Certificate
}

// LoadSeal reads a PEM certificate and key. With both paths empty it
// creates a self-signed seal valid for one year, which is enough for
// development but not trusted by PDF readers.
func LoadSeal(certPath, keyPath, commonName string) (*Seal, error) {
	if certPath == "" && keyPath == "" {
		logger.Warnf("pdfengine: no seal certificate configured, using an ephemeral self-signed seal")
		return SelfSignedSeal(commonName)
	}
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load seal key pair: %w", err)
	}
	cert, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parse seal certificate: %w", err)
	}
	signer, ok := pair.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("seal key of type %T cannot sign", pair.PrivateKey)
	}
	return &Seal{Signer: signer, Certificate: cert}, nil
}

// SelfSignedSeal creates an ECDSA P-256 seal.
func SelfSignedSeal(commonName string) (*Seal, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, err
	}
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{commonName}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &Seal{Signer: key, Certificate: cert}, nil
}
