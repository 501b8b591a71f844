package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FormatVersion is the current archive format.
const FormatVersion = 1

const (
	filePrefix = "thresholds-backup-"
	fileExt    = ".tar.json.gz"
)

// MaxDecompressedSize is the maximum allowed size of a decompressed archive payload (1GB).
const MaxDecompressedSize = 1 << 30

// Header is the plain-text first line of an archive file. It can be read
// without decompressing the payload.
type Header struct {
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Checksum    string    `json:"checksum"`
	RunCount    int       `json:"run_count"`
	RecordCount int       `json:"record_count"`
}

// Write stores a as a header line followed by the gzip-compressed JSON
// payload. The header carries the SHA-256 of the compressed bytes.
func Write(path string, a *Archive) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(payload); err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	header, err := json.Marshal(Header{
		Version:     FormatVersion,
		CreatedAt:   a.CreatedAt,
		Checksum:    checksum(compressed.Bytes()),
		RunCount:    len(a.Runs),
		RecordCount: a.RecordCount(),
	})
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	w.Write(header)
	w.WriteByte('\n')
	w.Write(compressed.Bytes())
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	return f.Close()
}

// Read loads an archive, verifying its checksum before decompressing.
func Read(path string) (*Archive, error) {
	header, compressed, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	if err := verify(header, compressed); err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if len(decompressed) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var a Archive
	if err := json.Unmarshal(decompressed, &a); err != nil {
		return nil, fmt.Errorf("parsing archive data: %w", err)
	}
	return &a, nil
}

// ReadHeader reads only the header line of an archive.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return parseHeader(bufio.NewReader(f))
}

// VerifyChecksum checks the integrity of an archive without decompressing it.
func VerifyChecksum(path string) error {
	header, compressed, err := readRaw(path)
	if err != nil {
		return err
	}
	return verify(header, compressed)
}

func readRaw(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header, err := parseHeader(r)
	if err != nil {
		return nil, nil, err
	}
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	return header, compressed, nil
}

func parseHeader(r *bufio.Reader) (*Header, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var h Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &h); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported archive version %d", h.Version)
	}
	return &h, nil
}

func verify(h *Header, compressed []byte) error {
	if actual := checksum(compressed); actual != h.Checksum {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", h.Checksum, actual)
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
