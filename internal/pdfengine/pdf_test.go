package pdfengine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
)

func TestPageBoxReadsAndInheritsMediaBox(t *testing.T) {
	data := buildPDF([]float64{0, 0, 595, 842}, [][]float64{{0, 0, 600, 800}, nil}, false)
	rdr, err := openPDF(data)
	require.NoError(t, err)
	require.Equal(t, 2, rdr.NumPage())

	first, err := pageBox(rdr, 1)
	require.NoError(t, err)
	assert.Equal(t, Rect{0, 0, 600, 800}, first)

	second, err := pageBox(rdr, 2)
	require.NoError(t, err)
	assert.Equal(t, Rect{0, 0, 595, 842}, second)

	_, err = pageBox(rdr, 3)
	require.True(t, errors.Is(err, document.ErrInvalidInput))
}

func TestPageBoxDefaultsToLetter(t *testing.T) {
	rdr, err := openPDF(buildPDF(nil, [][]float64{nil}, false))
	require.NoError(t, err)
	box, err := pageBox(rdr, 1)
	require.NoError(t, err)
	assert.Equal(t, defaultBox, box)
}

func TestOpenPDFRejectsEncrypted(t *testing.T) {
	_, err := openPDF(buildPDF(nil, [][]float64{{0, 0, 600, 800}}, true))
	require.Error(t, err)
	require.True(t, errors.Is(err, document.ErrDocumentEncrypted))
	assert.Contains(t, err.Error(), "password")
}

func TestOpenPDFRejectsGarbage(t *testing.T) {
	_, err := openPDF([]byte("this is not a pdf at all, just some text that is long enough to be read from the end of file"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, document.ErrDocumentEncrypted))
}
