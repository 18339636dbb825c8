package imapfetch

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// Chunk is a piece of a FETCH response, as handed over by an IMAP client.
//
// Text is a fragment of the response. When Text ends with a literal marker
// "{N}", Literal holds the N literal bytes. The bytes of a literal always
// directly follow the marker in the logical stream, without CRLF.
type Chunk struct {
	Text    []byte
	Literal []byte
}

// TextChunk returns a chunk holding a plain text fragment.
func TextChunk(s string) Chunk {
	return Chunk{Text: []byte(s)}
}

// LiteralChunk returns a chunk holding a header ending with a literal marker
// and the literal data.
func LiteralChunk(header string, literal []byte) Chunk {
	return Chunk{Text: []byte(header), Literal: literal}
}

var (
	fetchLinePrefix = regexp.MustCompile(`^\* ([0-9]+) FETCH `)
	literalSuffix   = regexp.MustCompile(`\{([0-9]+)\}$`)
)

// ChunkReader splits the server responses to a FETCH command into chunks.
//
// Untagged FETCH responses are turned into the "<seq> (<data items>)" form
// expected by Parser. Other untagged responses are skipped. Reading stops at
// the tagged status response, which is returned as an *Error if it isn't OK.
type ChunkReader struct {
	br      *bufio.Reader
	options Options

	cont bool // the next line continues a response after a literal
	skip bool // the response being read is skipped
	done bool
}

// NewChunkReader creates a new chunk reader.
//
// A nil options pointer is equivalent to a zero options value.
func NewChunkReader(r io.Reader, options *Options) *ChunkReader {
	if options == nil {
		options = &Options{}
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &ChunkReader{br: br, options: *options}
}

// Next returns the next chunk. io.EOF is returned after the last chunk.
func (cr *ChunkReader) Next() (*Chunk, error) {
	for {
		if cr.done {
			return nil, io.EOF
		}

		line, err := cr.readLine()
		if err == io.EOF {
			cr.done = true
			if cr.cont {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, io.EOF
		} else if err != nil {
			return nil, err
		}

		if !cr.cont {
			cr.skip = false
			if m := fetchLinePrefix.FindSubmatch(line); m != nil {
				rest := line[len(m[0]):]
				line = make([]byte, 0, len(m[1])+1+len(rest))
				line = append(append(append(line, m[1]...), ' '), rest...)
			} else if bytes.HasPrefix(line, []byte("* ")) || bytes.HasPrefix(line, []byte("+ ")) {
				cr.skip = true
			} else {
				cr.done = true
				return nil, cr.status(line)
			}
		}

		var literal []byte
		m := literalSuffix.FindSubmatch(line)
		if m != nil {
			size, err := strconv.ParseInt(string(m[1]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("imapfetch: invalid literal size: %v", err)
			}
			if max := cr.options.MaxLiteralSize; max > 0 && size > max {
				return nil, fmt.Errorf("imapfetch: literal size %v exceeds limit %v", size, max)
			}
			literal = make([]byte, size)
			if _, err := io.ReadFull(cr.br, literal); err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return nil, err
			}
			cr.options.debug(literal)
		}
		cr.cont = m != nil

		if cr.skip {
			continue
		}
		if m == nil {
			line = append(line, '\r', '\n')
		}
		return &Chunk{Text: line, Literal: literal}, nil
	}
}

func (cr *ChunkReader) readLine() ([]byte, error) {
	line, err := cr.br.ReadBytes('\n')
	if err == io.EOF && len(line) > 0 {
		err = nil
	} else if err != nil {
		return nil, err
	}
	cr.options.debug(line)
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}

func (cr *ChunkReader) status(line []byte) error {
	_, rest, ok := bytes.Cut(line, []byte(" "))
	if !ok {
		return fmt.Errorf("imapfetch: malformed response line %q", line)
	}
	resp := parseStatusResponse(string(rest))
	switch resp.Type {
	case StatusResponseTypeOK:
		return io.EOF
	case StatusResponseTypeNo, StatusResponseTypeBad, StatusResponseTypeBye:
		return (*Error)(resp)
	default:
		return fmt.Errorf("imapfetch: unexpected status response %q", line)
	}
}

// ReadChunks reads all chunks of a FETCH command's responses.
func ReadChunks(r io.Reader, options *Options) ([]Chunk, error) {
	cr := NewChunkReader(r, options)
	var chunks []Chunk
	for {
		chunk, err := cr.Next()
		if err == io.EOF {
			return chunks, nil
		} else if err != nil {
			return chunks, err
		}
		chunks = append(chunks, *chunk)
	}
}
