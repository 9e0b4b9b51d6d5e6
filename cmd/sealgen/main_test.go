package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/pdfengine"
)

func TestWriteSealLoads(t *testing.T) {
	certPath, keyPath, err := writeSeal(t.TempDir(), "Seal Uji")
	require.NoError(t, err)

	seal, err := pdfengine.LoadSeal(certPath, keyPath, "")
	require.NoError(t, err)
	require.Equal(t, "Seal Uji", seal.Certificate.Subject.CommonName)
}
