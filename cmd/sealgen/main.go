// Command sealgen writes a self-signed seal certificate and key for local
// development. Point SIGNING_SEAL_CERT_PATH and SIGNING_SEAL_KEY_PATH at the
// output so signed PDFs keep the same seal across restarts.
package main

import (
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tandatangan/tandatangan/backend/go-services/internal/pdfengine"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/logger"
)

func main() {
	out := flag.String("out", ".", "output directory")
	cn := flag.String("cn", "Tandatangan Digital Seal", "certificate common name")
	flag.Parse()

	certPath, keyPath, err := writeSeal(*out, *cn)
	if err != nil {
		logger.Fatalf("sealgen: %v", err)
	}
	logger.Infof("wrote %s and %s", certPath, keyPath)
}

func writeSeal(dir, commonName string) (certPath, keyPath string, err error) {
	seal, err := pdfengine.SelfSignedSeal(commonName)
	if err != nil {
		return "", "", err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(seal.Signer)
	if err != nil {
		return "", "", fmt.Errorf("marshal key: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	certPath = filepath.Join(dir, "seal.crt")
	keyPath = filepath.Join(dir, "seal.key")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: seal.Certificate.Raw})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return "", "", err
	}
	return certPath, keyPath, nil
}
