package issuer

import (
	qrcode "github.com/skip2/go-qrcode"
)

// Renderer turns payload bytes into a scannable image.
type Renderer interface {
	Render(payload []byte) ([]byte, error)
}

// QRRenderer renders PNG QR codes. Medium error correction leaves room
// for phone screen glare at the gate.
type QRRenderer struct {
	Size  int
	Level qrcode.RecoveryLevel
}

func NewQRRenderer() *QRRenderer {
	return &QRRenderer{Size: 512, Level: qrcode.Medium}
}

func (r *QRRenderer) Render(payload []byte) ([]byte, error) {
	return qrcode.Encode(string(payload), r.Level, r.Size)
}
