package pdfengine

import (
	"bytes"
	"fmt"
	"strings"
)

// buildPDF writes a small uncompressed PDF with one page per entry of boxes.
// A nil box makes the page inherit rootBox from the page tree.
func buildPDF(rootBox []float64, boxes [][]float64, encrypted bool) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	var offsets []int
	add := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}
	arr := func(b []float64) string {
		parts := make([]string, len(b))
		for i, f := range b {
			parts[i] = fmt.Sprintf("%g", f)
		}
		return "[" + strings.Join(parts, " ") + "]"
	}

	kids := make([]string, len(boxes))
	for i := range boxes {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	add("<< /Type /Catalog /Pages 2 0 R >>")
	pages := fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d", strings.Join(kids, " "), len(boxes))
	if rootBox != nil {
		pages += " /MediaBox " + arr(rootBox)
	}
	add(pages + " >>")
	for _, b := range boxes {
		page := "<< /Type /Page /Parent 2 0 R"
		if b != nil {
			page += " /MediaBox " + arr(b)
		}
		add(page + " >>")
	}

	extra := ""
	if encrypted {
		add("<< /Filter /Standard /V 5 /R 6 /Length 256 /P -1028 " +
			"/O <00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff0011223344556677> " +
			"/U <00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff0011223344556677> >>")
		extra = fmt.Sprintf(" /Encrypt %d 0 R /ID [<0123456789abcdef0123456789abcdef> <0123456789abcdef0123456789abcdef>]", len(offsets))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, extra, xref)
	return buf.Bytes()
}
