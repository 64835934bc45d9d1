package frame

import (
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/sys/unix"
)

// PrefixLen is the size of the signed length prefix that precedes a document.
const PrefixLen = 4

var (
	ErrShortHeader      = errors.New("frame: short length prefix")
	ErrShortRead        = errors.New("frame: short document read")
	ErrShortWrite       = errors.New("frame: short write")
	ErrDocumentTooLarge = errors.New("frame: document too large")
)

// Limits constrains document decode/encode memory use.
type Limits struct {
	MaxDocumentBytes int32
}

func DefaultLimits() Limits {
	return Limits{
		MaxDocumentBytes: 4 * 1024 * 1024,
	}
}

// ReadExact fills buf completely or fails. Interrupted reads are retried.
func ReadExact(r io.Reader, buf []byte) error {
	for len(buf) > 0 {
		n, err := r.Read(buf)
		buf = buf[n:]
		if err == nil {
			continue
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if len(buf) == 0 {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return ErrShortRead
		}
		return err
	}
	return nil
}

// WriteExact writes all of buf or fails. Interrupted writes are retried.
func WriteExact(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		buf = buf[n:]
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			return ErrShortWrite
		}
	}
	return nil
}

// WriteDocument writes the length prefix followed by doc.
// A nil or empty doc is sent as L=0.
func WriteDocument(w io.Writer, doc []byte, limits Limits) error {
	if limits.MaxDocumentBytes > 0 && int64(len(doc)) > int64(limits.MaxDocumentBytes) {
		return ErrDocumentTooLarge
	}
	if err := WriteExact(w, EncodeLength(int32(len(doc)))); err != nil {
		return err
	}
	if len(doc) == 0 {
		return nil
	}
	return WriteExact(w, doc)
}

// ReadDocument reads one length-prefixed document. L<=0 means no
// configuration and yields a nil slice with a nil error.
func ReadDocument(r io.Reader, limits Limits) ([]byte, error) {
	var prefix [PrefixLen]byte
	if err := ReadExact(r, prefix[:]); err != nil {
		if errors.Is(err, ErrShortRead) {
			return nil, ErrShortHeader
		}
		return nil, err
	}

	size := DecodeLength(prefix[:])
	if size <= 0 {
		return nil, nil
	}
	if limits.MaxDocumentBytes > 0 && size > limits.MaxDocumentBytes {
		return nil, ErrDocumentTooLarge
	}

	doc := make([]byte, size)
	if err := ReadExact(r, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// EncodeLength renders n in the host byte order used on the wire.
func EncodeLength(n int32) []byte {
	buf := make([]byte, PrefixLen)
	binary.NativeEndian.PutUint32(buf, uint32(n))
	return buf
}

func DecodeLength(b []byte) int32 {
	return int32(binary.NativeEndian.Uint32(b[:PrefixLen]))
}
