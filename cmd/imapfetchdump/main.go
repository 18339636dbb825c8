package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/emersion/go-imapfetch"
	"github.com/emersion/go-imapfetch/fetchutil"
)

var (
	in      string
	eml     string
	uids    string
	utf8    bool
	debug   bool
	maxSize int64
)

type part struct {
	PartNum  string            `json:"partnum"`
	Type     string            `json:"type"`
	Size     uint32            `json:"size"`
	Encoding string            `json:"encoding,omitempty"`
	Filename string            `json:"filename,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
}

type message struct {
	UID         uint32             `json:"uid"`
	Flags       []imapfetch.Flag   `json:"flags"`
	Subject     string             `json:"subject,omitempty"`
	Date        string             `json:"date,omitempty"`
	Size        int64              `json:"size,omitempty"`
	Contents    map[string][]*part `json:"contents"`
	Inlines     map[string]*part   `json:"inlines"`
	Attachments []*part            `json:"attachments"`
}

func main() {
	flag.StringVar(&in, "in", "", "Raw FETCH response file (defaults to stdin)")
	flag.StringVar(&eml, "eml", "", "Render a FETCH response from a message file")
	flag.StringVar(&uids, "uids", "", "Requested UID set, to report messages missing from the response")
	flag.BoolVar(&utf8, "utf8", false, "Quote non-ASCII strings when rendering -eml (UTF8=ACCEPT)")
	flag.BoolVar(&debug, "debug", false, "Print raw chunks to stderr")
	flag.Int64Var(&maxSize, "max-literal-size", 0, "Maximum literal size (0 means no limit)")
	flag.Parse()

	var r io.Reader = os.Stdin
	switch {
	case eml != "":
		raw, err := os.ReadFile(eml)
		if err != nil {
			log.Fatalf("Failed to read message: %v", err)
		}
		var buf bytes.Buffer
		if err := fetchutil.WriteMessage(&buf, 1, 1, nil, raw, utf8); err != nil {
			log.Fatalf("Failed to render FETCH response: %v", err)
		}
		r = &buf
	case in != "":
		f, err := os.Open(in)
		if err != nil {
			log.Fatalf("Failed to open input: %v", err)
		}
		defer f.Close()
		r = f
	}

	options := &imapfetch.Options{MaxLiteralSize: maxSize}
	if debug {
		options.DebugWriter = os.Stderr
	}

	chunks, err := imapfetch.ReadChunks(r, options)
	if err != nil {
		log.Fatalf("Failed to read FETCH response: %v", err)
	}

	// Chunks were already written to DebugWriter
	options.DebugWriter = nil
	result, err := imapfetch.Parse(chunks, options)
	if err != nil {
		log.Fatalf("Failed to parse FETCH response: %v", err)
	}

	if uids != "" {
		requested, err := imapfetch.ParseUIDSet(uids)
		if err != nil {
			log.Fatalf("Invalid -uids: %v", err)
		}
		if missing := result.Missing(requested); len(missing.Nums()) > 0 {
			log.Printf("No data returned for UIDs %v", missing)
		}
	}

	var out []*message
	for _, uid := range result.Sorted() {
		out = append(out, dumpMessage(result[uid]))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to write JSON: %v", err)
	}
}

func dumpMessage(msg imapfetch.Message) *message {
	m := &message{
		UID:      msg.UID(),
		Flags:    msg.Flags(),
		Contents: make(map[string][]*part),
		Inlines:  make(map[string]*part),
	}
	if env := msg.Envelope(); env != nil {
		m.Subject = env.Subject
		if t, err := env.ParseDate(); err == nil {
			m.Date = t.Format(time.RFC3339)
		}
	}
	m.Size, _ = msg.RFC822Size()

	cb := imapfetch.Classify(msg.BodyStructure())
	for subtype, parts := range cb.Contents {
		for _, p := range parts {
			m.Contents[subtype] = append(m.Contents[subtype], dumpPart(p))
		}
	}
	for cid, p := range cb.Inlines {
		m.Inlines[cid] = dumpPart(p)
	}
	for _, p := range cb.Attachments {
		m.Attachments = append(m.Attachments, dumpPart(p))
	}
	return m
}

func dumpPart(bs *imapfetch.BodyStructureSinglePart) *part {
	return &part{
		PartNum:  bs.PartNum,
		Type:     bs.MediaType(),
		Size:     bs.Size,
		Encoding: bs.Encoding,
		Filename: bs.Filename(),
		Params:   bs.Params,
	}
}
