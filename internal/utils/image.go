package utils

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/common"
)

// ImageInput is a decoded screenshot ready for recognition.
type ImageInput struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Size returns the decoded payload length in bytes.
func (in ImageInput) Size() int64 { return int64(len(in.Data)) }

// DecodeImageInput accepts raw image bytes, a data URL or bare base64 text and
// returns the image bytes with sniffed MIME type and dimensions.
func DecodeImageInput(raw []byte) (ImageInput, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ImageInput{}, common.InputError("EMPTY_IMAGE", "image payload is empty")
	}

	data := trimmed
	declared := ""
	switch {
	case bytes.HasPrefix(trimmed, []byte("data:")):
		mt, payload, err := splitDataURL(string(trimmed))
		if err != nil {
			return ImageInput{}, err
		}
		declared = mt
		if data, err = decodeBase64(payload); err != nil {
			return ImageInput{}, common.NewAppError(common.KindInput, "BAD_DATA_URL", "data URL payload is not base64", err)
		}
	case looksLikeBase64(trimmed):
		if dec, err := decodeBase64(string(trimmed)); err == nil {
			data = dec
		}
	}

	cfg, format, cfgErr := image.DecodeConfig(bytes.NewReader(data))
	mt := http.DetectContentType(data)
	if !constants.IsImageMIME(mt) {
		switch {
		case cfgErr == nil && constants.MIMEForExt(format) != "":
			mt = constants.MIMEForExt(format)
		case constants.IsImageMIME(declared):
			mt = declared
		default:
			return ImageInput{}, common.InputError("NOT_AN_IMAGE", "payload is not an image ("+mt+")")
		}
	}

	in := ImageInput{Data: data, MIMEType: mt}
	if cfgErr == nil {
		in.Width, in.Height = cfg.Width, cfg.Height
	}
	return in, nil
}

func splitDataURL(s string) (string, string, error) {
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return "", "", common.InputError("BAD_DATA_URL", "data URL has no payload")
	}
	meta := strings.TrimPrefix(s[:comma], "data:")
	if !strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return "", "", common.InputError("BAD_DATA_URL", "data URL must be base64 encoded")
	}
	mt := strings.ToLower(strings.TrimSuffix(strings.TrimSuffix(meta, ";base64"), ";BASE64"))
	return mt, s[comma+1:], nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

func looksLikeBase64(b []byte) bool {
	if len(b) < 64 {
		return false
	}
	for _, c := range b[:64] {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '+' || c == '/' || c == '=' || c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
