package imageprocessor

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/Faissen/signatures-recognition/internal/signature"
)

// EncodeCanvas stores c losslessly as PNG.
func EncodeCanvas(c *signature.Canvas) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("encode canvas: %w", signature.ErrInvalidCanvas)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, c.Gray(), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode canvas: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCanvas restores a canvas stored by EncodeCanvas. The stored image must
// match the configured canvas size.
func DecodeCanvas(data []byte, opts signature.Options) (*signature.Canvas, error) {
	gray, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return signature.NewCanvas(gray, opts.CanvasWidth, opts.CanvasHeight)
}
