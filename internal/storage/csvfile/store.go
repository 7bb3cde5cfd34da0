// Package csvfile appends site records to a delimited text file, one durable
// row per record, and reads the resume set back from it.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/historic-sites-crawler/internal/crawler"
)

// Header is the first row of every output file. Link must stay last: the
// resume set is read from the final column.
var Header = []string{"Title", "Aura", "Category", "Description", "Latitude", "Longitude", "Price", "Images", "Link"}

// ImageSeparator joins image URLs within the Images column.
const ImageSeparator = "|"

// Store is a crawler.RecordStore backed by a CSV file.
type Store struct {
	mu     sync.Mutex
	path   string
	f      file
	logger *zap.Logger
}

// file is the subset of *os.File the store writes through.
type file interface {
	io.Writer
	io.ReaderAt
	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
	Close() error
}

var _ crawler.RecordStore = (*Store)(nil)

// Open opens path for appending, creating it with a header if it is missing
// or empty. An existing file with a different header is rejected. A trailing
// row left incomplete by an interrupted write is cut off before appending.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage.csv_path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	// #nosec G304 -- output path comes from operator configuration.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s := &Store{path: path, f: f, logger: logger}
	if err := s.prepare(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// prepare repairs a torn tail, then writes or checks the header.
func (s *Store) prepare() error {
	info, err := s.f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	size := info.Size()
	header, end, err := scanComplete(s.f, size)
	if err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	if end < size {
		if err := s.f.Truncate(end); err != nil {
			return fmt.Errorf("truncate incomplete row in %s: %w", s.path, err)
		}
		s.logger.Warn("discarded incomplete trailing row",
			zap.String("path", s.path),
			zap.Int64("bytes", size-end),
		)
	}
	if end == 0 {
		if err := s.writeRow(Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		return nil
	}
	if !slices.Equal(header, Header) {
		return fmt.Errorf("%s has header %v, want %v", s.path, header, Header)
	}
	return nil
}

// Append writes one record and syncs it to disk before returning. A failed
// write is rolled back so the file never keeps part of a row.
func (s *Store) Append(ctx context.Context, record crawler.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeRow(Row(record))
}

// Keys returns the source links already in the file.
func (s *Store) Keys(_ context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// #nosec G304 -- output path comes from operator configuration.
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()
	return ReadResumeKeys(f)
}

// Close releases the file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// writeRow encodes the whole row in memory, appends it in one write and
// flushes it to stable storage. On any failure the file is cut back to its
// previous length.
func (s *Store) writeRow(fields []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode row: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return fmt.Errorf("store %s is closed", s.path)
	}
	info, err := s.f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	offset := info.Size()
	if _, err := s.f.Write(buf.Bytes()); err != nil {
		return s.rollback(offset, fmt.Errorf("write row: %w", err))
	}
	if err := s.f.Sync(); err != nil {
		return s.rollback(offset, fmt.Errorf("sync %s: %w", s.path, err))
	}
	return nil
}

func (s *Store) rollback(offset int64, cause error) error {
	if err := s.f.Truncate(offset); err != nil {
		return errors.Join(cause, fmt.Errorf("truncate %s to %d: %w", s.path, offset, err))
	}
	return cause
}

// Row renders a record in Header order.
func Row(r crawler.Record) []string {
	return []string{
		r.Title,
		strconv.Itoa(r.AuraScore),
		r.Category,
		r.Description,
		formatCoord(r.Latitude),
		formatCoord(r.Longitude),
		r.Price,
		strings.Join(r.Images, ImageSeparator),
		r.SourceLink,
	}
}

// formatCoord writes the shortest exact form; NaN renders as "NaN".
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadResumeKeys parses CSV data, skips the header row and collects the
// last field of every other row. Empty input yields an empty set.
func ReadResumeKeys(r io.Reader) (map[string]struct{}, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	keys := map[string]struct{}{}
	first := true
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return keys, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse resume file: %w", err)
		}
		if first {
			first = false
			continue
		}
		if len(row) == 0 {
			continue
		}
		if link := strings.TrimSpace(row[len(row)-1]); link != "" {
			keys[link] = struct{}{}
		}
	}
}

// scanComplete parses the first size bytes of r and returns the header row
// and the offset just past the last complete row. A final row with no line
// break, or a quoted field left open at the end of the data, counts as
// incomplete. Malformed rows elsewhere are an error.
func scanComplete(r io.ReaderAt, size int64) ([]string, int64, error) {
	if size == 0 {
		return nil, 0, nil
	}
	last := make([]byte, 1)
	if _, err := r.ReadAt(last, size-1); err != nil {
		return nil, 0, fmt.Errorf("read tail: %w", err)
	}
	terminated := last[0] == '\n'

	reader := csv.NewReader(io.NewSectionReader(r, 0, size))
	reader.FieldsPerRecord = -1
	var (
		header []string
		end    int64
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return header, end, nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) && errors.Is(pe.Err, csv.ErrQuote) && reader.InputOffset() == size {
				return header, end, nil
			}
			return nil, 0, err
		}
		offset := reader.InputOffset()
		if offset == size && !terminated {
			return header, end, nil
		}
		if header == nil {
			header = row
		}
		end = offset
	}
}
