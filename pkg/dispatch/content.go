package dispatch

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Strategy is the gateway operation a payload is delivered with.
type Strategy string

const (
	StrategySendText   Strategy = "send_text"
	StrategySendBinary Strategy = "send_binary"
)

const (
	MediaTypePDF = "application/pdf"

	DocumentFilename = "documento.pdf"
	ImageFilename    = "imagem.jpg"
)

var allowedMediaTypes = map[string]struct{}{
	"image/jpeg":  {},
	"image/jpg":   {},
	"image/png":   {},
	"image/gif":   {},
	MediaTypePDF: {},
}

// Binary is an attachment with its declared media type.
type Binary struct {
	MediaType string
	Data      []byte
}

// Payload is what a dispatch delivers. With a binary present the text is
// used as caption.
type Payload struct {
	Text   string
	Binary *Binary
}

func (p Payload) HasText() bool {
	return strings.TrimSpace(p.Text) != ""
}

func (p Payload) HasBinary() bool {
	return p.Binary != nil && len(p.Binary.Data) > 0
}

func (p Payload) IsEmpty() bool {
	return !p.HasText() && !p.HasBinary()
}

// Classify picks the delivery strategy for p.
func Classify(p Payload) (Strategy, error) {
	if p.Binary != nil {
		if !IsAllowedMediaType(p.Binary.MediaType) {
			return "", newError(UnsupportedMediaType, "media type "+strings.TrimSpace(p.Binary.MediaType)+" is not accepted", nil)
		}
		if len(p.Binary.Data) == 0 {
			if !p.HasText() {
				return "", newError(MissingContent, "binary payload is empty and no text was given", nil)
			}
			return StrategySendText, nil
		}
		return StrategySendBinary, nil
	}

	if !p.HasText() {
		return "", newError(MissingContent, "payload has neither text nor binary content", nil)
	}
	return StrategySendText, nil
}

// MediaType lowercases t and drops any parameters.
func MediaType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

func IsAllowedMediaType(t string) bool {
	_, ok := allowedMediaTypes[MediaType(t)]
	return ok
}

func IsPDF(t string) bool {
	return MediaType(t) == MediaTypePDF
}

// Filename returns the generic outbound name for a media type.
func Filename(mediaType string) string {
	if IsPDF(mediaType) {
		return DocumentFilename
	}
	return ImageFilename
}

// OutgoingFileFor builds the gateway file for a binary payload.
func OutgoingFileFor(b Binary) OutgoingFile {
	mt := MediaType(b.MediaType)
	if mt == "image/jpg" {
		mt = "image/jpeg"
	}
	return OutgoingFile{Data: b.Data, Filename: Filename(mt), MediaType: mt}
}

var ErrMalformedDataURL = errors.New("malformed data url")

// ParseDataURL splits "data:<type>;base64,<data>". ok is false when s is not
// a data url at all.
func ParseDataURL(s string) (mediaType string, encoded string, ok bool, err error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return "", s, false, nil
	}
	header, body, found := strings.Cut(s[len("data:"):], ",")
	if !found {
		return "", "", true, ErrMalformedDataURL
	}
	if !strings.HasSuffix(strings.ToLower(header), ";base64") {
		return "", "", true, ErrMalformedDataURL
	}
	return MediaType(header[:len(header)-len(";base64")]), body, true, nil
}

// DecodeBase64 accepts padded or unpadded standard encoding, ignoring
// embedded whitespace.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, errors.New("base64 content is empty")
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
