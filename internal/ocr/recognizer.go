package ocr

import (
	"context"
	"errors"
)

// ErrDisabled is returned by the no-op recognizer.
var ErrDisabled = errors.New("ocr is not configured")

// Recognizer turns a captcha image into text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Nop is the recognizer used when aipocr credentials are absent.
type Nop struct{}

// Recognize always fails with ErrDisabled.
func (Nop) Recognize(context.Context, []byte) (string, error) {
	return "", ErrDisabled
}
