package pdfengine

// Rect is an absolute rectangle in PDF user space (origin bottom-left).
type Rect struct {
	LLX, LLY, URX, URY float64
}

func (r Rect) Width() float64  { return r.URX - r.LLX }
func (r Rect) Height() float64 { return r.URY - r.LLY }

// defaultBox is US Letter, used when a page declares no MediaBox.
var defaultBox = Rect{0, 0, 612, 792}

// Place converts a fractional placement (origin top-left, 0..1 of the page)
// into an absolute rectangle on a page with the given box:
//
//	x = px*W
//	y = H - py*H - h*H
func Place(page Rect, px, py, w, h float64) Rect {
	pw, ph := page.Width(), page.Height()
	x := page.LLX + px*pw
	y := page.LLY + ph - py*ph - h*ph
	return Rect{LLX: x, LLY: y, URX: x + w*pw, URY: y + h*ph}
}

// Fit shrinks box to the aspect ratio of an imgW x imgH image and centres
// the result inside box. The image is never stretched.
func Fit(box Rect, imgW, imgH int) Rect {
	if imgW <= 0 || imgH <= 0 || box.Width() <= 0 || box.Height() <= 0 {
		return box
	}
	scale := box.Width() / float64(imgW)
	if s := box.Height() / float64(imgH); s < scale {
		scale = s
	}
	w := float64(imgW) * scale
	h := float64(imgH) * scale
	x := box.LLX + (box.Width()-w)/2
	y := box.LLY + (box.Height()-h)/2
	return Rect{LLX: x, LLY: y, URX: x + w, URY: y + h}
}

const (
	qrSize   = 72.0
	qrMargin = 24.0
)

// QRRect is the fixed QR position: bottom-right corner of the page.
func QRRect(page Rect) Rect {
	x := page.URX - qrMargin - qrSize
	y := page.LLY + qrMargin
	return Rect{LLX: x, LLY: y, URX: x + qrSize, URY: y + qrSize}
}
