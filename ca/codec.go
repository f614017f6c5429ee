package ca

import (
	"bytes"
	"io"
	"strconv"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// sizeCap is the hard ceiling on an announced object size (spec.md §4.2:
// "about 2G"). The real limit is enforced much lower by the file server
// front-end; this just guards the decoder against a corrupt or hostile
// size header.
const sizeCap = 0x7FFFFFFF

// headerPeek is how many decompressed bytes we read before we know
// whether we even need the rest — "a small (≥100-byte) prefix buffer"
// per spec.md §4.2.
const headerPeek = 256

// encodeLoose frames payload as "<keyword> <size>\0<payload>" and
// deflates it with zlib framing, producing the exact bytes a loose
// object file holds on disk.
func encodeLoose(t Type, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)

	header := t.keyword() + " " + strconv.Itoa(len(payload)) + "\x00"
	if _, err := io.WriteString(w, header); err != nil {
		return nil, errors.Wrap(err, "write object header")
	}
	if _, err := w.Write(payload); err != nil {
		return nil, errors.Wrap(err, "write object payload")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "flush object")
	}
	return buf.Bytes(), nil
}

// decodeLooseSize inflates just enough of compressed to learn the
// announced payload size, without decoding the payload itself.
func decodeLooseSize(compressed []byte, expectedType Type) (int, error) {
	size, _, err := decodeLoose(compressed, expectedType, false)
	return size, err
}

// decodeLoose inflates compressed, verifies it is framed as
// expectedType, and — when withPayload is true — returns the full
// payload. When withPayload is false, decoding stops once the header has
// been parsed (spec.md §4.2: "size-only reads may truncate decoding at
// the header").
func decodeLoose(compressed []byte, expectedType Type, withPayload bool) (int, []byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return 0, nil, errors.Wrap(ErrBadObjectContent, err.Error())
	}
	defer zr.Close()

	header := make([]byte, 0, headerPeek)
	buf := make([]byte, headerPeek)
	for len(header) < headerPeek {
		n, rerr := zr.Read(buf)
		header = append(header, buf[:n]...)
		if idx := bytes.IndexByte(header, 0); idx >= 0 {
			break
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return 0, nil, errors.Wrap(rerr, "inflate object header")
		}
	}

	keyword := expectedType.keyword()
	if len(header) < len(keyword)+1 || string(header[:len(keyword)]) != keyword || header[len(keyword)] != ' ' {
		return 0, nil, errors.Wrapf(ErrBadObjectType, "expected %q", keyword)
	}

	rest := header[len(keyword)+1:]
	nul := bytes.IndexByte(rest, 0)
	if nul < 0 {
		return 0, nil, errors.Wrap(ErrBadObjectSize, "missing size terminator")
	}
	sizeDigits := rest[:nul]
	if len(sizeDigits) == 0 {
		return 0, nil, errors.Wrap(ErrBadObjectSize, "empty size field")
	}

	size := 0
	for _, d := range sizeDigits {
		if d < '0' || d > '9' {
			return 0, nil, errors.Wrap(ErrBadObjectSize, "non-digit in size field")
		}
		if size >= sizeCap/10 {
			return 0, nil, errors.Wrap(ErrBadObjectSize, "size too large")
		}
		size = size*10 + int(d-'0')
	}

	if !withPayload {
		return size, nil, nil
	}

	payload := make([]byte, 0, size)
	payload = append(payload, rest[nul+1:]...)

	remaining := make([]byte, 32*1024)
	for {
		n, rerr := zr.Read(remaining)
		payload = append(payload, remaining[:n]...)
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return 0, nil, errors.Wrap(rerr, "inflate object payload")
		}
	}

	if len(payload) != size {
		return 0, nil, errors.Wrapf(ErrBadObjectContent, "announced %d, got %d bytes", size, len(payload))
	}
	return size, payload, nil
}
