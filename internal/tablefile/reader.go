package tablefile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/errors"
)

// Reader gives random access to the rows of a table file. Open verifies
// both checksums, so rows read afterwards are known to be intact unless the
// file changes underneath the reader.
type Reader struct {
	file   *os.File
	header Header
	dict   []DictEntry
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrTableCorrupt, fmt.Sprintf(format, args...))
}

// Open validates and opens the table file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening table file: %w", err)
	}
	r, err := open(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func open(f *os.File) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat table file: %w", err)
	}
	size := info.Size()
	if size < int64(HeaderSize+FooterSize) {
		return nil, corrupt("file is %d bytes", size)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, corrupt("bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, corrupt("unsupported version %d", header.Version)
	}
	if header.RowsOffset != int64(HeaderSize) ||
		header.DictOffset != header.RowsOffset+header.RowsSize ||
		header.DictOffset+header.DictSize+int64(FooterSize) != size {
		return nil, corrupt("section layout does not match file size %d", size)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, size-int64(FooterSize)); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if int64(binary.LittleEndian.Uint64(footer[16:24])) != header.DictOffset ||
		int64(binary.LittleEndian.Uint64(footer[24:32])) != header.DictSize ||
		binary.LittleEndian.Uint32(footer[8:12]) != header.RowCount {
		return nil, corrupt("footer disagrees with header")
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, corrupt("dictionary checksum mismatch")
	}
	rowsCRC := crc32.NewIEEE()
	if _, err := io.Copy(rowsCRC, io.NewSectionReader(f, header.RowsOffset, header.RowsSize)); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	if rowsCRC.Sum32() != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, corrupt("row checksum mismatch")
	}

	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, corrupt("parsing dictionary: %v", err)
	}
	if len(dict) != int(header.RowCount) {
		return nil, corrupt("dictionary has %d rows, header %d", len(dict), header.RowCount)
	}
	for _, e := range dict {
		if e.Offset < 0 || e.Len < 0 || e.Offset+int64(e.Len) > header.RowsSize {
			return nil, corrupt("row %q out of bounds", e.DocID)
		}
	}
	return &Reader{file: f, header: header, dict: dict}, nil
}

// Threshold returns the score threshold the table was built with.
func (r *Reader) Threshold() float64 {
	return r.header.Threshold
}

// DocCount returns the corpus size the table was built against.
func (r *Reader) DocCount() int {
	return int(r.header.DocCount)
}

// Fingerprint returns the corpus and weighting fingerprint recorded at
// write time, or "" if none was given.
func (r *Reader) Fingerprint() string {
	return strings.TrimRight(string(r.header.Fingerprint[:]), "\x00")
}

// CreatedAt returns when the file was written.
func (r *Reader) CreatedAt() time.Time {
	return time.Unix(r.header.CreatedAt, 0)
}

// Len returns the number of rows.
func (r *Reader) Len() int {
	return len(r.dict)
}

// Row reads the row of docID.
func (r *Reader) Row(docID string) (ranker.TableRow, bool, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].DocID >= docID
	})
	if idx >= len(r.dict) || r.dict[idx].DocID != docID {
		return ranker.TableRow{}, false, nil
	}
	row, err := r.readRow(r.dict[idx])
	if err != nil {
		return ranker.TableRow{}, false, err
	}
	return row, true, nil
}

func (r *Reader) readRow(e DictEntry) (ranker.TableRow, error) {
	data := make([]byte, e.Len)
	if _, err := r.file.ReadAt(data, r.header.RowsOffset+e.Offset); err != nil {
		return ranker.TableRow{}, fmt.Errorf("reading row %q: %w", e.DocID, err)
	}
	var neighbors []ranker.ScoredDoc
	if err := json.Unmarshal(data, &neighbors); err != nil {
		return ranker.TableRow{}, corrupt("parsing row %q: %v", e.DocID, err)
	}
	if len(neighbors) != e.Neighbors {
		return ranker.TableRow{}, corrupt("row %q has %d neighbours, dictionary %d", e.DocID, len(neighbors), e.Neighbors)
	}
	return ranker.TableRow{DocID: e.DocID, Neighbors: neighbors}, nil
}

// Rows reads every row in file order.
func (r *Reader) Rows() ([]ranker.TableRow, error) {
	entries := append([]DictEntry(nil), r.dict...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })
	rows := make([]ranker.TableRow, 0, len(entries))
	for _, e := range entries {
		row, err := r.readRow(e)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *Reader) Close() error {
	return r.file.Close()
}
