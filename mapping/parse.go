package mapping

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Format identifies a mapping file format.
type Format uint8

// Supported mapping formats.
const (
	FormatAuto Format = iota
	FormatEnigma
	FormatTinyV1
	FormatTinyV2
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatEnigma:
		return "enigma"
	case FormatTinyV1:
		return "tiny-v1"
	case FormatTinyV2:
		return "tiny-v2"
	default:
		return "unknown"
	}
}

const maxLineBytes = 1 << 20

// Parse reads one mapping stream into b. name is used in error messages.
// The format is detected from the first line.
func Parse(r io.Reader, name string, b *Builder) error {
	br := bufio.NewReader(r)
	head, err := br.Peek(16)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return &ParseError{File: name, Err: err}
	}
	return ParseFormat(br, name, detectFormat(string(head)), b)
}

// ParseFormat reads one mapping stream of a known format into b.
func ParseFormat(r io.Reader, name string, format Format, b *Builder) error {
	p := &lineParser{file: name, b: b}
	switch format {
	case FormatTinyV1:
		p.handle = p.tinyV1
	case FormatTinyV2:
		p.handle = p.tinyV2
	case FormatEnigma, FormatAuto:
		p.handle = p.enigma
	default:
		return &ParseError{File: name, Err: malformed("unknown format %d", format)}
	}
	return p.run(r)
}

func detectFormat(head string) Format {
	switch {
	case strings.HasPrefix(head, "v1\t"):
		return FormatTinyV1
	case strings.HasPrefix(head, "tiny\t2\t"):
		return FormatTinyV2
	default:
		return FormatEnigma
	}
}

// lineParser drives a per-line handler and attaches file and line to errors.
type lineParser struct {
	file   string
	line   int
	b      *Builder
	handle func(raw string) error

	// Enigma and Tiny v2 nesting state.
	stack []frame

	// Tiny namespace columns.
	header bool
}

type frameKind uint8

const (
	frameClass frameKind = iota
	frameField
	frameMethod
	frameArg
)

type frame struct {
	kind     frameKind
	obf      string
	readable string
}

func (p *lineParser) run(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		p.line++
		raw := strings.TrimRight(sc.Text(), "\r")
		if err := p.handle(raw); err != nil {
			return &ParseError{File: p.file, Line: p.line, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return &ParseError{File: p.file, Line: p.line, Err: err}
	}
	return nil
}

// depth counts leading tabs.
func depth(raw string) int {
	n := 0
	for n < len(raw) && raw[n] == '\t' {
		n++
	}
	return n
}

// enter truncates the nesting stack to d and returns the parent frame.
func (p *lineParser) enter(d int) (frame, bool, error) {
	if d > len(p.stack) {
		return frame{}, false, malformed("unexpected indentation (depth %d under %d open entries)", d, len(p.stack))
	}
	p.stack = p.stack[:d]
	if d == 0 {
		return frame{}, false, nil
	}
	return p.stack[d-1], true, nil
}
