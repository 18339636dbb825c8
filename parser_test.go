package imapfetch_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emersion/go-imapfetch"
)

type testLogger struct {
	lines []string
}

func (l *testLogger) Printf(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func literal(s string) string {
	return fmt.Sprintf("{%d}%s", len(s), s)
}

const (
	singlePartBS = `("text" "plain" ("charset" "us-ascii") NIL NIL "7bit" 25 2)`

	alternativeBS = `(("text" "plain" ("charset" "utf-8") NIL NIL "quoted-printable" 10 1)` +
		`("text" "html" ("charset" "utf-8") NIL NIL "quoted-printable" 20 1) "alternative")`

	mixedBS = `(("text" "plain" ("charset" "utf-8") NIL NIL "7bit" 12 1 NIL NIL NIL NIL)` +
		`("application" "pdf" ("name" "doc.pdf") NIL NIL "base64" 4096 NIL ("attachment" ("filename" "doc.pdf")) NIL NIL)` +
		` "mixed" ("boundary" "b1") NIL NIL NIL)`

	relatedBS = `(("text" "html" ("charset" "utf-8") NIL NIL "7bit" 100 3)` +
		`("image" "png" ("name" "logo.png") "<img1>" NIL "base64" 2000) "related")`

	nestedBS = `((("text" "plain" NIL NIL NIL "7bit" 1 1)("text" "html" NIL NIL NIL "7bit" 1 1) "alternative")` +
		`("image" "png" NIL NIL NIL "base64" 10)` +
		`("message" "rfc822" NIL NIL NIL "7bit" 300 (NIL "Inner" NIL NIL NIL NIL NIL NIL NIL NIL)` +
		` (("text" "plain" NIL NIL NIL "7bit" 5 1)("application" "zip" NIL NIL NIL "base64" 50) "mixed") 12)` +
		` "mixed")`
)

func parseString(t *testing.T, s string, options *imapfetch.Options) imapfetch.FetchResult {
	t.Helper()
	if options == nil {
		options = &imapfetch.Options{Logger: &testLogger{}}
	}
	result, err := imapfetch.Parse([]imapfetch.Chunk{imapfetch.TextChunk(s)}, options)
	require.NoError(t, err)
	return result
}

func parseBodyStructure(t *testing.T, bs string) imapfetch.BodyStructure {
	t.Helper()
	result := parseString(t, "1 (UID 1 BODYSTRUCTURE "+bs+")\r\n", nil)
	require.Contains(t, result, uint32(1))
	got := result[1].BodyStructure()
	require.NotNil(t, got)
	return got
}

func TestParse_partNumbers(t *testing.T) {
	for _, bs := range []string{singlePartBS, alternativeBS, mixedBS, relatedBS, nestedBS} {
		tree := parseBodyStructure(t, bs)

		var leaves []string
		tree.Walk(func(path []int, part imapfetch.BodyStructure) bool {
			var want []string
			for _, num := range path {
				want = append(want, fmt.Sprint(num))
			}
			switch part := part.(type) {
			case *imapfetch.BodyStructureSinglePart:
				assert.Equal(t, strings.Join(want, "."), part.PartNum)
				leaves = append(leaves, part.PartNum)
			case *imapfetch.BodyStructureMultiPart:
				assert.Equal(t, strings.Join(want, "."), part.PartNum)
			}
			return true
		})

		require.NotEmpty(t, leaves)
		for i := 1; i < len(leaves); i++ {
			assert.Less(t, comparePartNum(leaves[i-1], leaves[i]), 0, "%v before %v", leaves[i-1], leaves[i])
		}
	}
}

func comparePartNum(a, b string) int {
	pa, pb := imapfetch.ParsePartNum(a), imapfetch.ParsePartNum(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			return pa[i] - pb[i]
		}
	}
	return len(pa) - len(pb)
}

func TestParse_nestedPartNumbers(t *testing.T) {
	tree := parseBodyStructure(t, nestedBS)

	var leaves []string
	tree.Walk(func(path []int, part imapfetch.BodyStructure) bool {
		if single, ok := part.(*imapfetch.BodyStructureSinglePart); ok {
			leaves = append(leaves, single.PartNum)
		}
		return true
	})
	assert.Equal(t, []string{"1.1", "1.2", "2", "3"}, leaves)

	msg := imapfetch.FindPart(tree, "3")
	require.NotNil(t, msg)
	require.NotNil(t, msg.MessageRFC822)
	assert.Equal(t, "Inner", msg.MessageRFC822.Envelope.Subject)
	assert.Equal(t, int64(12), msg.MessageRFC822.NumLines)

	inner, ok := msg.MessageRFC822.BodyStructure.(*imapfetch.BodyStructureMultiPart)
	require.True(t, ok)
	assert.Equal(t, "mixed", inner.Subtype)
	require.Len(t, inner.Children, 2)
	assert.Equal(t, "3.1", inner.Children[0].(*imapfetch.BodyStructureSinglePart).PartNum)
	assert.Equal(t, "3.2", inner.Children[1].(*imapfetch.BodyStructureSinglePart).PartNum)

	zip := imapfetch.FindPart(tree, "3.2")
	require.NotNil(t, zip)
	assert.Equal(t, "application/zip", zip.MediaType())
	assert.Same(t, inner.Children[1], zip)
	assert.Equal(t, "text/plain", imapfetch.FindPart(tree, "3.1").MediaType())
	assert.Nil(t, imapfetch.FindPart(tree, "3.3"))

	alt := tree.(*imapfetch.BodyStructureMultiPart).Children[0].(*imapfetch.BodyStructureMultiPart)
	assert.Equal(t, "1", alt.PartNum)
	assert.Equal(t, "multipart/alternative", alt.MediaType())
}

func TestParse_singlePart(t *testing.T) {
	tree := parseBodyStructure(t, singlePartBS)

	part, ok := tree.(*imapfetch.BodyStructureSinglePart)
	require.True(t, ok)
	assert.Equal(t, &imapfetch.BodyStructureSinglePart{
		Type:     "text",
		Subtype:  "plain",
		Params:   map[string]string{"charset": "us-ascii"},
		Encoding: "7bit",
		Size:     25,
		PartNum:  "1",
		Text:     &imapfetch.BodyStructureText{NumLines: 2},
	}, part)

	cb := imapfetch.Classify(tree)
	assert.Len(t, cb.Contents, 1)
	assert.Len(t, cb.Contents["plain"], 1)
	assert.Empty(t, cb.Attachments)
	assert.Empty(t, cb.Inlines)
}

func TestParse_alternative(t *testing.T) {
	cb := imapfetch.Classify(parseBodyStructure(t, alternativeBS))
	assert.Len(t, cb.Contents, 2)
	assert.Equal(t, "1", cb.Content("plain").PartNum)
	assert.Equal(t, "2", cb.Content("html").PartNum)
	assert.Empty(t, cb.Attachments)
	assert.Empty(t, cb.Inlines)
}

func TestParse_mixed(t *testing.T) {
	tree := parseBodyStructure(t, mixedBS)

	mp, ok := tree.(*imapfetch.BodyStructureMultiPart)
	require.True(t, ok)
	require.NotNil(t, mp.Extended)
	assert.Equal(t, map[string]string{"boundary": "b1"}, mp.Extended.Params)

	cb := imapfetch.Classify(tree)
	assert.Len(t, cb.Contents, 1)
	assert.Len(t, cb.Contents["plain"], 1)
	require.Len(t, cb.Attachments, 1)

	pdf := cb.Attachments[0]
	assert.Equal(t, "2", pdf.PartNum)
	assert.Equal(t, "application/pdf", pdf.MediaType())
	assert.Equal(t, "doc.pdf", pdf.Filename())
	require.NotNil(t, pdf.Disposition())
	assert.Equal(t, "attachment", pdf.Disposition().Value)
	assert.Nil(t, pdf.Text)
}

func TestParse_related(t *testing.T) {
	cb := imapfetch.Classify(parseBodyStructure(t, relatedBS))
	assert.Len(t, cb.Contents["html"], 1)
	assert.Empty(t, cb.Attachments)
	require.Contains(t, cb.Inlines, "img1")
	assert.Equal(t, "image/png", cb.Inlines["img1"].MediaType())
	assert.Equal(t, "2", cb.Inlines["img1"].PartNum)
}

const rechunkHeader = "Subject: \xc3\xa9t\xc3\xa9\r\n\r\n"

var rechunkResponse = "1 (UID 7 FLAGS (\\Seen $Forwarded) BODY[TEXT] " + literal("hello world") + " BODYSTRUCTURE " + mixedBS + ")\r\n" +
	"2 (UID 8 ENVELOPE (NIL \"Caf\xc3\xa9\" NIL NIL NIL NIL NIL NIL NIL NIL) BODY[HEADER] " + literal(rechunkHeader) + ")\r\n"

func TestParse_rechunk(t *testing.T) {
	want := parseString(t, rechunkResponse, nil)
	require.Len(t, want, 2)
	s, ok := want[8].String("BODY[HEADER]")
	require.True(t, ok)
	assert.Equal(t, rechunkHeader, s)
	assert.Equal(t, "Café", want[8].Envelope().Subject)

	options := &imapfetch.Options{Logger: &testLogger{}}
	parser := imapfetch.NewParser(options)
	for i := 0; i <= len(rechunkResponse); i++ {
		chunks := []imapfetch.Chunk{
			imapfetch.TextChunk(rechunkResponse[:i]),
			imapfetch.TextChunk(rechunkResponse[i:]),
		}
		got, err := parser.Parse(chunks)
		require.NoError(t, err, "split at %v", i)
		require.Equal(t, want, got, "split at %v", i)
	}

	var bytewise []imapfetch.Chunk
	for i := 0; i < len(rechunkResponse); i++ {
		bytewise = append(bytewise, imapfetch.TextChunk(rechunkResponse[i:i+1]))
	}
	got, err := parser.Parse(bytewise)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParse_literalChunks(t *testing.T) {
	want := parseString(t, rechunkResponse, nil)

	// The way IMAP client libraries hand over literals
	marker1 := "{11}"
	header1 := rechunkResponse[:strings.Index(rechunkResponse, marker1)+len(marker1)]
	rest := rechunkResponse[len(header1)+11:]
	marker2 := fmt.Sprintf("{%d}", len(rechunkHeader))
	header2 := rest[:strings.Index(rest, marker2)+len(marker2)]
	rest = rest[len(header2)+len(rechunkHeader):]
	chunks := []imapfetch.Chunk{
		imapfetch.LiteralChunk(header1, []byte("hello world")),
		imapfetch.LiteralChunk(header2, []byte(rechunkHeader)),
		imapfetch.TextChunk(rest),
	}
	got, err := imapfetch.Parse(chunks, &imapfetch.Options{Logger: &testLogger{}})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParse_twoMessages(t *testing.T) {
	result := parseString(t, "1 (UID 10 FLAGS (\\Seen) BODYSTRUCTURE "+singlePartBS+")\r\n"+
		"2 (UID 11 FLAGS ())\r\n", nil)
	require.Len(t, result, 2)

	assert.Equal(t, []imapfetch.Flag{imapfetch.FlagSeen}, result[10].Flags())
	assert.NotNil(t, result[10].BodyStructure())

	assert.Empty(t, result[11].Flags())
	assert.Nil(t, result[11].BodyStructure())
	assert.Len(t, result[11], 2)
}

func TestParse_malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		err  error
	}{
		{"bodystructure without list", "1 (UID 1 BODYSTRUCTURE \"text\")\r\n", imapfetch.ErrUnexpectedToken},
		{"flags without list", "1 (UID 1 FLAGS \\Seen)\r\n", imapfetch.ErrUnexpectedToken},
		{"uid without number", "1 (UID NIL)\r\n", imapfetch.ErrUnexpectedToken},
		{"uid out of range", "1 (UID 4294967296 FLAGS (\\Seen))\r\n", imapfetch.ErrUnexpectedToken},
		{"zero uid", "1 (UID 0)\r\n", imapfetch.ErrUnexpectedToken},
		{"missing paren", "1 UID 1\r\n", imapfetch.ErrUnexpectedToken},
		{"truncated", "1 (UID 1 BODYSTRUCTURE (\"text\" \"plain\"", imapfetch.ErrUnexpectedToken},
		{"truncated literal", "1 (UID 1 BODY[] {10}abc", imapfetch.ErrUnexpectedToken},
		{"atom in bodystructure", "1 (UID 1 BODYSTRUCTURE (TEXT PLAIN))\r\n", imapfetch.ErrUnexpectedToken},
		{"literal in flags", "1 (UID 1 FLAGS ({3}abc))\r\n", imapfetch.ErrUnexpectedToken},
		{"lex error", "1 (UID 1 %)\r\n", imapfetch.ErrLex},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			result, err := imapfetch.Parse([]imapfetch.Chunk{imapfetch.TextChunk(tc.in)}, nil)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, tc.err), "got %v", err)
			assert.True(t, imapfetch.IsParseError(err))
		})
	}
}

func TestParse_errorOffset(t *testing.T) {
	_, err := imapfetch.Parse([]imapfetch.Chunk{
		imapfetch.TextChunk("1 (UID 1 "),
		imapfetch.TextChunk("BODYSTRUCTURE \"text\")\r\n"),
	}, nil)

	var parseErr *imapfetch.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, imapfetch.ErrorKindUnexpectedToken, parseErr.Kind)
	assert.Equal(t, int64(23), parseErr.Offset)
	assert.Equal(t, "string", parseErr.TokenKind)
	assert.Equal(t, "text", parseErr.Token)
}

func TestParse_literalWithoutMarker(t *testing.T) {
	_, err := imapfetch.Parse([]imapfetch.Chunk{
		imapfetch.LiteralChunk("1 (UID 1 BODY[] ", []byte("abc")),
	}, nil)
	assert.True(t, errors.Is(err, imapfetch.ErrUnexpectedToken))
}

func TestParse_missingUID(t *testing.T) {
	logger := &testLogger{}
	result := parseString(t, "1 (FLAGS (\\Seen))\r\n2 (UID 5)\r\n", &imapfetch.Options{Logger: logger})
	assert.Len(t, result, 1)
	assert.Contains(t, result, uint32(5))
	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], "without UID")
}

func TestParse_flagsOutsideMessage(t *testing.T) {
	result := parseString(t, "FLAGS (\\Seen)\r\n1 (UID 5)\r\n", nil)
	require.Len(t, result, 1)
	assert.Nil(t, result[5].Flags())
}

func TestParse_duplicateUID(t *testing.T) {
	result := parseString(t, "1 (UID 5 FLAGS (\\Seen))\r\n1 (UID 5 RFC822.SIZE 42)\r\n", nil)
	require.Len(t, result, 1)
	assert.Equal(t, []imapfetch.Flag{imapfetch.FlagSeen}, result[5].Flags())
	size, ok := result[5].String("RFC822.SIZE")
	assert.True(t, ok)
	assert.Equal(t, "42", size)
}

func TestParse_flags(t *testing.T) {
	result := parseString(t, "1 (UID 5 FLAGS (\\Answered \\Flagged $Label1 Junk NONJUNK \\*))\r\n", nil)
	assert.Equal(t, []imapfetch.Flag{
		imapfetch.FlagAnswered,
		imapfetch.FlagFlagged,
		"$Label1",
		"Junk",
		"NONJUNK",
		imapfetch.FlagWildcard,
	}, result[5].Flags())
}

func TestParse_envelope(t *testing.T) {
	result := parseString(t, "1 (UID 3 ENVELOPE (\"Mon, 7 Feb 1994 21:52:25 -0800\" \"=?utf-8?q?Caf=C3=A9?=\""+
		" ((\"Fred Foobar\" NIL \"foobar\" \"example.org\")) NIL NIL"+
		" ((NIL NIL \"mooch\" \"owatagu.example.net\")) NIL NIL NIL \"<B27397-0100000@example.org>\"))\r\n", nil)

	env := result[3].Envelope()
	require.NotNil(t, env)
	assert.Equal(t, &imapfetch.Envelope{
		Date:      "Mon, 7 Feb 1994 21:52:25 -0800",
		Subject:   "Café",
		From:      []imapfetch.Address{{Name: "Fred Foobar", Mailbox: "foobar", Host: "example.org"}},
		To:        []imapfetch.Address{{Mailbox: "mooch", Host: "owatagu.example.net"}},
		MessageID: "<B27397-0100000@example.org>",
	}, env)
	assert.Equal(t, "foobar@example.org", env.From[0].Addr())
}

func TestParse_values(t *testing.T) {
	in := "1 (UID 3 INTERNALDATE \"17-Jul-1996 02:44:25 -0700\" MODSEQ (12345)" +
		" X-GM-LABELS (\\Inbox work (nested NIL)) BODY[HEADER] NIL X-SUBJECT " + literal("héllo") + ")\r\n"
	msg := parseString(t, in, nil)[3]

	assert.Equal(t, imapfetch.String("17-Jul-1996 02:44:25 -0700"), msg["INTERNALDATE"])
	assert.Equal(t, imapfetch.Values{imapfetch.String("12345")}, msg["MODSEQ"])
	assert.Equal(t, imapfetch.Values{
		imapfetch.String("\\Inbox"),
		imapfetch.String("work"),
		imapfetch.Values{imapfetch.String("nested"), imapfetch.Nil{}},
	}, msg["X-GM-LABELS"])
	assert.Equal(t, imapfetch.Nil{}, msg["BODY[HEADER]"])
	assert.Equal(t, imapfetch.String("héllo"), msg["X-SUBJECT"])
}

func TestParse_sectionBytes(t *testing.T) {
	body := "\xff\xfe\x00binary"
	in := "1 (UID 3 BODY[]<0> " + literal(body) + " BODY[1.MIME] {0} BINARY[2] \"x\\\"y\")\r\n"
	msg := parseString(t, in, &imapfetch.Options{DisableCharsetDetection: true})[3]

	s, ok := msg.String("BODY[]<0>")
	require.True(t, ok)
	assert.Equal(t, body, s)
	assert.Equal(t, imapfetch.String(""), msg["BODY[1.MIME]"])
	assert.Equal(t, imapfetch.String("x\"y"), msg["BINARY[2]"])
}

func TestParse_peekSectionBytes(t *testing.T) {
	body := "caf\xe9\r\n"
	in := "1 (UID 3 BODY.PEEK[TEXT] " + literal(body) + " BINARY.PEEK[1] " + literal(body) + ")\r\n"
	msg := parseString(t, in, &imapfetch.Options{DisableCharsetDetection: true})[3]

	s, ok := msg.String("BODY.PEEK[TEXT]")
	require.True(t, ok)
	assert.Equal(t, body, s)
	s, ok = msg.String("BINARY.PEEK[1]")
	require.True(t, ok)
	assert.Equal(t, body, s)
}

func TestParse_body(t *testing.T) {
	msg := parseString(t, "1 (UID 3 BODY "+singlePartBS+")\r\n", nil)[3]
	bs, ok := msg.BodyStructure().(*imapfetch.BodyStructureSinglePart)
	require.True(t, ok)
	assert.Equal(t, "text/plain", bs.MediaType())
	assert.Nil(t, bs.Extended)
}

func TestParse_bodyStructureLiteral(t *testing.T) {
	in := "1 (UID 3 BODYSTRUCTURE (\"application\" \"octet-stream\" (\"name\" " + literal("rapport été.pdf") +
		") NIL NIL \"base64\" 100 NIL (\"attachment\" NIL) NIL NIL))\r\n"
	bs, ok := parseString(t, in, nil)[3].BodyStructure().(*imapfetch.BodyStructureSinglePart)
	require.True(t, ok)
	assert.Equal(t, "rapport été.pdf", bs.Filename())
}

func TestParse_encodedWords(t *testing.T) {
	in := "1 (UID 3 BODYSTRUCTURE (\"application\" \"pdf\" (\"name\" \"=?utf-8?b?w6l0w6kucGRm?=\")" +
		" NIL \"=?iso-8859-1?q?r=E9sum=E9?=\" \"base64\" 100))\r\n"
	bs, ok := parseString(t, in, nil)[3].BodyStructure().(*imapfetch.BodyStructureSinglePart)
	require.True(t, ok)
	assert.Equal(t, "été.pdf", bs.Filename())
	assert.Equal(t, "résumé", bs.Description)
}

func TestParse_invalidEncoding(t *testing.T) {
	_, err := imapfetch.Parse([]imapfetch.Chunk{
		imapfetch.TextChunk("1 (UID 3 INTERNALDATE \"caf\xe9\")\r\n"),
	}, &imapfetch.Options{DisableCharsetDetection: true})
	assert.True(t, errors.Is(err, imapfetch.ErrEncoding), "got %v", err)
}

func TestParse_maxLiteralSize(t *testing.T) {
	options := &imapfetch.Options{MaxLiteralSize: 4}
	_, err := imapfetch.Parse([]imapfetch.Chunk{
		imapfetch.TextChunk("1 (UID 3 BODY[] " + literal("hello world") + ")\r\n"),
	}, options)
	assert.True(t, errors.Is(err, imapfetch.ErrUnexpectedToken), "got %v", err)

	result := parseString(t, "1 (UID 3 BODY[] "+literal("hey")+")\r\n", options)
	assert.Len(t, result, 1)
}

func TestParser_reuse(t *testing.T) {
	parser := imapfetch.NewParser(&imapfetch.Options{Logger: &testLogger{}})

	_, err := parser.Parse([]imapfetch.Chunk{imapfetch.TextChunk("1 (UID 1 BODYSTRUCTURE (\"text\" ")})
	require.Error(t, err)

	result, err := parser.Parse([]imapfetch.Chunk{imapfetch.TextChunk("2 (UID 2)\r\n")})
	require.NoError(t, err)
	assert.Equal(t, imapfetch.FetchResult{2: {"UID": imapfetch.String("2")}}, result)
}

func TestParse_debugWriter(t *testing.T) {
	var buf bytes.Buffer
	chunks := []imapfetch.Chunk{
		imapfetch.LiteralChunk("1 (UID 1 BODY[] {3}", []byte("abc")),
		imapfetch.TextChunk(")\r\n"),
	}
	_, err := imapfetch.Parse(chunks, &imapfetch.Options{DebugWriter: &buf})
	require.NoError(t, err)
	assert.Equal(t, "1 (UID 1 BODY[] {3}abc)\r\n", buf.String())
}
