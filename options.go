package imapfetch

import (
	"io"
	"log"
	"mime"

	"github.com/emersion/go-message/charset"
)

// Logger is used to report recoverable anomalies, e.g. a message dropped
// because it lacks a UID.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Options contains options for Parser and ChunkReader.
type Options struct {
	// Raw chunk data will be written to this writer, if any.
	DebugWriter io.Writer
	// Logger defaults to log.Default.
	Logger Logger
	// Decoder for RFC 2047 strings. Defaults to a decoder which supports
	// all charsets known to go-message.
	WordDecoder *mime.WordDecoder
	// DisableCharsetDetection makes non-UTF-8 strings an encoding error
	// instead of guessing their charset.
	DisableCharsetDetection bool
	// MaxLiteralSize is the maximum accepted literal size. Zero means no
	// limit.
	MaxLiteralSize int64
}

func (options *Options) logger() Logger {
	if options.Logger == nil {
		return log.Default()
	}
	return options.Logger
}

func (options *Options) debug(b []byte) {
	if options.DebugWriter != nil && len(b) > 0 {
		options.DebugWriter.Write(b)
	}
}

var defaultWordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// decodeText decodes RFC 2047 encoded words. Undecodable text is logged and
// returned as is.
func (options *Options) decodeText(s string) string {
	wordDecoder := options.WordDecoder
	if wordDecoder == nil {
		wordDecoder = defaultWordDecoder
	}
	out, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		options.logger().Printf("imapfetch: failed to decode %q: %v", s, err)
		return s
	}
	return out
}
