// Package tablefile stores a precomputed similarity table in a single
// binary file: a fixed header, one JSON blob per row, a JSON dictionary
// of row offsets and a checksum footer.
package tablefile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/ranker"
)

const (
	MagicBytes    uint32 = 0x46525354
	FormatVersion uint32 = 2
	HeaderSize    int    = 96
	FooterSize    int    = 32

	fingerprintSize = 32
)

// Meta describes what a table was computed against.
type Meta struct {
	Threshold   float64
	DocCount    int
	Fingerprint string
}

// Header is the 96-byte header at the start of every table file.
type Header struct {
	Magic      uint32
	Version    uint32
	RowCount   uint32
	DocCount   uint32
	CreatedAt  int64
	Threshold  float64
	DictOffset int64
	DictSize   int64
	RowsOffset int64
	RowsSize   int64

	Fingerprint [fingerprintSize]byte
}

// DictEntry locates one row in the file.
type DictEntry struct {
	DocID     string `json:"id"`
	Offset    int64  `json:"o"`
	Len       int    `json:"l"`
	Neighbors int    `json:"n"`
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.RowCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], math.Float64bits(h.Threshold))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.RowsOffset))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.RowsSize))
	copy(b[64:64+fingerprintSize], h.Fingerprint[:])
	return b
}

func decodeHeader(b []byte) Header {
	h := Header{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		RowCount:   binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(b[16:24])),
		Threshold:  math.Float64frombits(binary.LittleEndian.Uint64(b[24:32])),
		DictOffset: int64(binary.LittleEndian.Uint64(b[32:40])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[40:48])),
		RowsOffset: int64(binary.LittleEndian.Uint64(b[48:56])),
		RowsSize:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
	copy(h.Fingerprint[:], b[64:64+fingerprintSize])
	return h
}

// Write atomically replaces path with a table file holding rows. It writes
// to path+".tmp" first and renames on success.
func Write(path string, meta Meta, rows []ranker.TableRow) error {
	if len(meta.Fingerprint) > fingerprintSize {
		return fmt.Errorf("fingerprint %q longer than %d bytes", meta.Fingerprint, fingerprintSize)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating table directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp table file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	header := Header{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		RowCount:   uint32(len(rows)),
		DocCount:   uint32(meta.DocCount),
		CreatedAt:  time.Now().Unix(),
		Threshold:  meta.Threshold,
		RowsOffset: int64(HeaderSize),
	}
	copy(header.Fingerprint[:], meta.Fingerprint)
	if _, err := f.Write(header.encode()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	rowsCRC := crc32.NewIEEE()
	dict := make([]DictEntry, 0, len(rows))
	offset := int64(0)
	for _, row := range rows {
		data, err := json.Marshal(row.Neighbors)
		if err != nil {
			return fmt.Errorf("marshaling row %q: %w", row.DocID, err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("writing row %q: %w", row.DocID, err)
		}
		rowsCRC.Write(data)
		dict = append(dict, DictEntry{
			DocID:     row.DocID,
			Offset:    offset,
			Len:       len(data),
			Neighbors: len(row.Neighbors),
		})
		offset += int64(len(data))
	}
	header.RowsSize = offset
	header.DictOffset = header.RowsOffset + header.RowsSize

	sort.Slice(dict, func(i, j int) bool { return dict[i].DocID < dict[j].DocID })
	for i := 1; i < len(dict); i++ {
		if dict[i].DocID == dict[i-1].DocID {
			return fmt.Errorf("duplicate row for %q", dict[i].DocID)
		}
	}
	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}
	header.DictSize = int64(len(dictData))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], rowsCRC.Sum32())
	binary.LittleEndian.PutUint32(footer[8:12], header.RowCount)
	binary.LittleEndian.PutUint64(footer[16:24], uint64(header.DictOffset))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(header.DictSize))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(header.encode(), 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing table file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing table file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming table file: %w", err)
	}
	return nil
}
