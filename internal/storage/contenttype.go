package storage

import (
	"bytes"
	"errors"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLimit bounds how much of a stream is buffered for content detection.
const sniffLimit = 3072

// DetectContentType returns the MIME type of the file at path.
func DetectContentType(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return mtype.String(), nil
}

// DetectExtension returns the canonical extension (without dot) for data, or
// an empty string when the type has none.
func DetectExtension(data []byte) string {
	ext := mimetype.Detect(data).Extension()
	if len(ext) > 0 && ext[0] == '.' {
		return ext[1:]
	}
	return ext
}

// sniff reads the head of r to detect its content type and returns a reader
// that replays the consumed bytes.
func sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLimit)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	head = head[:n]
	return mimetype.Detect(head).String(), io.MultiReader(bytes.NewReader(head), r), nil
}
