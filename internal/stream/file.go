package stream

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// FileConfig holds construction parameters for a file-backed source.
type FileConfig struct {
	Path   string `mapstructure:"path"`
	Offset int64  `mapstructure:"offset"` // initial read position in bytes
}

// fileReadAhead sizes the buffered reader in front of the file.
const fileReadAhead = 256 << 10

// FileSource reads a local file in fixed-size chunks. Receive timeouts
// do not apply; reads complete as fast as the filesystem allows.
type FileSource struct {
	f         *os.File
	r         *bufio.Reader
	path      string
	size      int64
	chunkSize int
}

// NewFileSource opens the file read-only and positions the first read
// at cfg.Offset.
func NewFileSource(cfg FileConfig, chunkSize int) (*FileSource, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadChunkSize, chunkSize)
	}
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", cfg.Path, err)
	}

	s := &FileSource{
		f:         f,
		r:         bufio.NewReaderSize(f, fileReadAhead),
		path:      cfg.Path,
		size:      info.Size(),
		chunkSize: chunkSize,
	}
	if cfg.Offset > 0 {
		if err := s.SeekTo(cfg.Offset); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

// ReadInto fills p with the next chunk. Every chunk is exactly
// ChunkSize bytes except the final one, which may be shorter; the call
// after the final chunk reports io.EOF.
func (s *FileSource) ReadInto(p []byte) (int, error) {
	n, err := io.ReadFull(s.r, p[:s.chunkSize])
	switch err {
	case nil:
		return n, nil
	case io.ErrUnexpectedEOF:
		// Final partial chunk.
		return n, nil
	case io.EOF:
		return 0, io.EOF
	default:
		return 0, fmt.Errorf("read %s: %w", s.path, err)
	}
}

// SeekTo repositions the next read at the given byte offset, discarding
// buffered read-ahead. Seeking past the end is allowed; the next read
// reports io.EOF.
func (s *FileSource) SeekTo(offset int64) error {
	if offset < 0 {
		return fmt.Errorf("ninox: negative seek offset %d", offset)
	}
	if _, err := s.f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s: %w", s.path, err)
	}
	s.r.Reset(s.f)
	return nil
}

// Size reports the file length in bytes at open time.
func (s *FileSource) Size() int64 { return s.size }

// ChunkCount reports how many reads consume the whole file from the
// beginning.
func (s *FileSource) ChunkCount() int64 {
	return (s.size + int64(s.chunkSize) - 1) / int64(s.chunkSize)
}

// Path reports the backing file path.
func (s *FileSource) Path() string { return s.path }

func (s *FileSource) ChunkSize() int { return s.chunkSize }

func (s *FileSource) Label() string { return "file:" + s.path }

// Close releases the file handle. Safe to call more than once.
func (s *FileSource) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
