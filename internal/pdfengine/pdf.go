package pdfengine

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/digitorus/pdf"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
)

var errEncrypted = document.NewError(document.KindDocumentEncrypted,
	"Dokumen dilindungi password. Hapus password dari PDF lalu unggah ulang dokumen.")

// trailerWindow is how far from the end of the file the last trailer is looked for.
const trailerWindow = 4096

// openPDF parses data and rejects password protected files.
func openPDF(data []byte) (*pdf.Reader, error) {
	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if encryptionError(err) || hasEncryptDict(data) {
			return nil, errEncrypted
		}
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	if !rdr.Trailer().Key("Encrypt").IsNull() {
		return nil, errEncrypted
	}
	return rdr, nil
}

func encryptionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "encrypt") || strings.Contains(msg, "password")
}

func hasEncryptDict(data []byte) bool {
	tail := data
	if len(tail) > trailerWindow {
		tail = tail[len(tail)-trailerWindow:]
	}
	return bytes.Contains(tail, []byte("/Encrypt"))
}

// pageBox returns the MediaBox of page n (1-based), following inheritance
// through the page tree.
func pageBox(rdr *pdf.Reader, n int) (Rect, error) {
	if n < 1 || n > rdr.NumPage() {
		return Rect{}, document.NewError(document.KindInvalidInput,
			fmt.Sprintf("halaman %d tidak ada (dokumen memiliki %d halaman)", n, rdr.NumPage()))
	}
	node := rdr.Page(n).V
	if node.IsNull() {
		return Rect{}, fmt.Errorf("page %d not found", n)
	}
	for depth := 0; depth < 32 && !node.IsNull(); depth++ {
		mb := node.Key("MediaBox")
		if mb.Kind() == pdf.Array && mb.Len() >= 4 {
			r := Rect{
				LLX: mb.Index(0).Float64(),
				LLY: mb.Index(1).Float64(),
				URX: mb.Index(2).Float64(),
				URY: mb.Index(3).Float64(),
			}
			if r.Width() > 0 && r.Height() > 0 {
				return r, nil
			}
		}
		node = node.Key("Parent")
	}
	return defaultBox, nil
}
