package diferenco

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unsafe"

	"github.com/emberscm/ember/modules/streamio"
)

const (
	MAX_DIFF_SIZE = 100 << 20 // MAX_DIFF_SIZE 100MiB
	BINARY        = "binary"
	UTF8          = "UTF-8"
	sniffLen      = 8000
)

var (
	// ErrBinaryData is returned when the content is detected as binary
	ErrBinaryData = errors.New("binary data")
)

// looksBinary reports whether sniff (the first sniffLen bytes of a blob)
// contains a NUL byte, the same heuristic Git itself uses to decide
// whether a path is diffable as text. This module's three-way merger only
// needs binary/text discrimination, not charset transcoding, so that is
// all this package does — non-UTF-8 source encodings are read and merged
// as opaque bytes rather than converted.
func looksBinary(sniff []byte) bool {
	return bytes.IndexByte(sniff, 0) != -1
}

func readRawText(r io.Reader, size int) (string, error) {
	var b bytes.Buffer

	// Read initial bytes for binary detection
	if _, err := b.ReadFrom(io.LimitReader(r, sniffLen)); err != nil {
		return "", fmt.Errorf("failed to read initial bytes: %w", err)
	}

	if looksBinary(b.Bytes()) {
		return "", fmt.Errorf("%w: detected null byte in content", ErrBinaryData)
	}

	// Pre-allocate buffer for remaining content
	b.Grow(size)

	if _, err := b.ReadFrom(r); err != nil {
		return "", fmt.Errorf("failed to read remaining content: %w", err)
	}

	content := b.Bytes()
	return unsafe.String(unsafe.SliceData(content), len(content)), nil
}

// ReadUnifiedText reads all of r as text, refusing a size above
// MAX_DIFF_SIZE; size is also used to preallocate the read buffer. The returned charset is always UTF8: this module treats every
// non-binary blob as UTF-8 for merge/diff purposes.
func ReadUnifiedText(r io.Reader, size int64, textconv bool) (content string, charset string, err error) {
	if size > MAX_DIFF_SIZE {
		return "", "", fmt.Errorf("file size %d bytes exceeds limit %d bytes", size, MAX_DIFF_SIZE)
	}
	content, err = readRawText(r, int(size))
	if err != nil {
		return "", "", fmt.Errorf("failed to read raw text: %w", err)
	}
	return content, UTF8, nil
}

// NewUnifiedReaderEx sniffs r for binary content and reports BINARY or
// UTF8 accordingly, returning a reader that replays the sniffed bytes.
// textconv is accepted for call-site compatibility with callers that used
// to request charset transcoding; this package no longer performs any.
func NewUnifiedReaderEx(r io.Reader, textconv bool) (io.Reader, string, error) {
	sniffBytes, err := streamio.ReadMax(r, sniffLen)
	if err != nil {
		return nil, "", err
	}
	reader := io.MultiReader(bytes.NewReader(sniffBytes), r)
	if looksBinary(sniffBytes) {
		return reader, BINARY, nil
	}
	return reader, UTF8, nil
}

func NewUnifiedReader(r io.Reader) (io.Reader, error) {
	reader, _, err := NewUnifiedReaderEx(r, false)
	return reader, err
}

func NewTextReader(r io.Reader) (io.Reader, error) {
	sniffBytes, err := streamio.ReadMax(r, sniffLen)
	if err != nil {
		return nil, err
	}
	if looksBinary(sniffBytes) {
		return nil, ErrBinaryData
	}
	return io.MultiReader(bytes.NewReader(sniffBytes), r), nil
}
