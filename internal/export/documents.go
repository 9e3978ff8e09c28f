// Package export writes CSV reports and the JSON collection documents that
// carry the whole dataset between installations.
package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Collection names one JSON document: the file it lives in and the key that
// holds its records.
type Collection struct {
	Key  string
	File string
}

var (
	Services    = Collection{Key: "services", File: "services_db.json"}
	Proposals   = Collection{Key: "proposals", File: "proposals_db.json"}
	Assessments = Collection{Key: "assessments", File: "risk_assessments_db.json"}
	Invites     = Collection{Key: "invites", File: "copsoq_invites_db.json"}
	Responses   = Collection{Key: "responses", File: "copsoq_responses_db.json"}
)

// Collections lists every document in import order: invites before the
// responses that point at them.
func Collections() []Collection {
	return []Collection{Services, Proposals, Assessments, Invites, Responses}
}

// CollectionByKey finds a collection by its key or by the alias
// risk_assessments.
func CollectionByKey(key string) (Collection, bool) {
	if key == "risk_assessments" {
		return Assessments, true
	}
	for _, c := range Collections() {
		if c.Key == key {
			return c, true
		}
	}
	return Collection{}, false
}

// CompressedExt is appended to document files written with zstd.
const CompressedExt = ".zst"

// ErrCorruptDocument is returned when a document is not a JSON object
// holding its collection.
var ErrCorruptDocument = errors.New("corrupt collection document")

// WriteDocument writes records as {"<key>": [...]}, indented.
func WriteDocument(w io.Writer, c Collection, records any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(map[string]any{c.Key: records})
}

// ReadDocument decodes the records of c into dst. A document without the
// key leaves dst untouched.
func ReadDocument(r io.Reader, c Collection, dst any) error {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("%w %s: %v", ErrCorruptDocument, c.File, err)
	}
	raw, ok := doc[c.Key]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w %s: %v", ErrCorruptDocument, c.File, err)
	}
	return nil
}

// CreateFile opens path for writing, through a zstd encoder when compress
// is set. Close flushes the encoder and the file.
func CreateFile(path string, compress bool) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !compress {
		return &bufferedFile{f: f, w: bufio.NewWriter(f)}, nil
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	return &zstdFile{f: f, enc: enc}, nil
}

// OpenFile opens a document, decompressing files ending in CompressedExt.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, CompressedExt) {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	return &zstdReader{f: f, dec: dec}, nil
}

// Locate returns the path of c inside dir, preferring the plain file over
// the compressed one. It returns false when neither exists.
func Locate(dir string, c Collection) (string, bool) {
	for _, name := range []string{c.File, c.File + CompressedExt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

type bufferedFile struct {
	f *os.File
	w *bufio.Writer
}

func (b *bufferedFile) Write(p []byte) (int, error) { return b.w.Write(p) }

func (b *bufferedFile) Close() error {
	if err := b.w.Flush(); err != nil {
		b.f.Close()
		return err
	}
	return b.f.Close()
}

type zstdFile struct {
	f   *os.File
	enc *zstd.Encoder
}

func (z *zstdFile) Write(p []byte) (int, error) { return z.enc.Write(p) }

func (z *zstdFile) Close() error {
	if err := z.enc.Close(); err != nil {
		z.f.Close()
		return err
	}
	return z.f.Close()
}

type zstdReader struct {
	f   *os.File
	dec *zstd.Decoder
}

func (z *zstdReader) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReader) Close() error {
	z.dec.Close()
	return z.f.Close()
}
