package imapfetch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/emersion/go-message/charset"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/ianaindex"
)

var errInvalidUTF8 = errors.New("imapfetch: invalid UTF-8")

// decodeBytes converts a string or literal payload to UTF-8. Servers may
// return subjects and names in legacy charsets without labelling them, so
// when the payload isn't valid UTF-8 its charset is guessed.
func (options *Options) decodeBytes(b []byte) (string, error) {
	if utf8.Valid(b) {
		return string(b), nil
	}
	if options.DisableCharsetDetection {
		return "", errInvalidUTF8
	}

	res, err := chardet.NewTextDetector().DetectBest(b)
	if err != nil {
		return "", fmt.Errorf("failed to detect charset: %w", err)
	}
	s, err := decodeCharset(res.Charset, b)
	if err != nil {
		return "", err
	}
	options.logger().Printf("imapfetch: decoded %v bytes as %v (confidence %v)", len(b), res.Charset, res.Confidence)
	return s, nil
}

// decodeCharset converts b from the named charset to UTF-8.
func decodeCharset(name string, b []byte) (string, error) {
	enc, _ := ianaindex.MIME.Encoding(name)
	if enc == nil {
		enc, _ = ianaindex.IANA.Encoding(name)
	}
	if enc != nil {
		out, err := enc.NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("failed to decode %v: %w", name, err)
		}
		return string(out), nil
	}

	// ianaindex doesn't know all encodings, go-message has a few aliases more
	r, err := charset.Reader(name, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decode %v: %w", name, err)
	}
	return string(out), nil
}
