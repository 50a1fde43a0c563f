package codes

import (
	"fmt"
	"os"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels when none is given
const DefaultSize = 256

// Encode renders text as a PNG QR code
func Encode(text string, size int) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("badge text is empty")
	}
	if size <= 0 {
		size = DefaultSize
	}

	png, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encoding qr code: %w", err)
	}
	return png, nil
}

// WriteFile renders text and writes the PNG to path
func WriteFile(path, text string, size int) error {
	png, err := Encode(text, size)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
