package apng

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// ChunkRef is a lightweight record sufficient to re-read a data chunk
// from a Reader without retaining its payload in memory: an absolute
// byte offset and a payload length. Used by IDAT and fdAT chunk lists
// when the load-frame-data-eagerly option is off.
type ChunkRef struct {
	Offset int64
	Length uint32
}

// Reader is the byte-oriented source the Stream Walker drives. Both
// the in-memory and file-backed variants share identical semantics;
// they differ only in backing storage.
type Reader interface {
	// Read returns exactly n bytes advancing the streaming cursor, or
	// a short-read error.
	Read(n int) ([]byte, error)
	// Seek repositions the streaming cursor to an absolute offset.
	Seek(offset int64) error
	// Offset reports the current streaming cursor position.
	Offset() int64
	// Load performs an absolute read of ref.Length bytes at ref.Offset
	// without disturbing the streaming cursor.
	Load(ref ChunkRef) ([]byte, error)
}

// MemoryReader is a Reader backed by an in-memory byte slice.
type MemoryReader struct {
	buf []byte
	pos int64
}

// NewMemoryReader wraps buf for streaming access. buf is not copied;
// the caller must not mutate it for the lifetime of the Reader.
func NewMemoryReader(buf []byte) *MemoryReader {
	return &MemoryReader{buf: buf}
}

func (m *MemoryReader) Read(n int) ([]byte, error) {
	if n < 0 || m.pos+int64(n) > int64(len(m.buf)) {
		return nil, errors.WithStack(io.ErrUnexpectedEOF)
	}
	out := m.buf[m.pos : m.pos+int64(n)]
	m.pos += int64(n)
	return out, nil
}

func (m *MemoryReader) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(m.buf)) {
		return errors.Errorf("apng: seek offset %d out of range", offset)
	}
	m.pos = offset
	return nil
}

func (m *MemoryReader) Offset() int64 { return m.pos }

func (m *MemoryReader) Load(ref ChunkRef) ([]byte, error) {
	end := ref.Offset + int64(ref.Length)
	if ref.Offset < 0 || end > int64(len(m.buf)) {
		return nil, errors.WithStack(io.ErrUnexpectedEOF)
	}
	return m.buf[ref.Offset:end], nil
}

// FileReader is a Reader backed by a seekable *os.File. Load uses
// pread-style positional reads (ReadAt) so it never disturbs the
// streaming cursor maintained for Read/Seek.
type FileReader struct {
	f   *os.File
	pos int64
}

// NewFileReader opens path for streaming, positional-read access.
func NewFileReader(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &FileReader{f: f}, nil
}

// Close releases the underlying file handle.
func (fr *FileReader) Close() error { return fr.f.Close() }

func (fr *FileReader) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(fr.f, buf); err != nil {
		return nil, errors.WithStack(err)
	}
	fr.pos += int64(n)
	return buf, nil
}

func (fr *FileReader) Seek(offset int64) error {
	if _, err := fr.f.Seek(offset, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	fr.pos = offset
	return nil
}

func (fr *FileReader) Offset() int64 { return fr.pos }

func (fr *FileReader) Load(ref ChunkRef) ([]byte, error) {
	buf := make([]byte, ref.Length)
	if _, err := fr.f.ReadAt(buf, ref.Offset); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf, nil
}
