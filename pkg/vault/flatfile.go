package vault

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

// maxLineSize bounds a single persisted line.
const maxLineSize = 1024 * 1024

// ciphertextEncoding is the text form of a ciphertext in the flat file.
var ciphertextEncoding = base64.URLEncoding

// FlatFile stores records as text, one per line:
//
//	name,link,base64url(ciphertext)
//
// There is no header, schema version, or escaping; names and links with a
// delimiter or line break are rejected by ValidateFields before they get here.
type FlatFile struct {
	path   string
	mode   ParseMode
	logger *zap.Logger
}

// FlatFileOption configures a FlatFile.
type FlatFileOption func(*FlatFile)

// WithParseMode sets how malformed lines are handled. The default is ParseStrict.
func WithParseMode(mode ParseMode) FlatFileOption {
	return func(f *FlatFile) { f.mode = mode }
}

// WithFlatFileLogger sets the logger used for skipped lines.
func WithFlatFileLogger(logger *zap.Logger) FlatFileOption {
	return func(f *FlatFile) { f.logger = logger }
}

// NewFlatFile returns a flat-file store at path.
func NewFlatFile(path string, opts ...FlatFileOption) *FlatFile {
	f := &FlatFile{
		path:   path,
		mode:   ParseStrict,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the file location.
func (f *FlatFile) Path() string {
	return f.path
}

// Load reads and parses every line. A missing file is an empty store.
func (f *FlatFile) Load() ([]Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, ioError("read store", err)
	}

	records := []Record{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")

		var rec Record
		if strings.TrimSpace(line) == "" {
			// Blank lines are never written by Save.
			if f.mode == ParseLenient {
				continue
			}
			err = &ParseError{Line: lineNo, Reason: "blank line"}
		} else {
			rec, err = parseLine(lineNo, line)
		}
		if err != nil {
			if f.mode == ParseLenient {
				f.logger.Warn("skipping malformed record",
					zap.String("store", f.path),
					zap.Int("line", lineNo),
					zap.Error(err))
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, ioError("scan store", err)
	}

	return records, nil
}

func parseLine(lineNo int, line string) (Record, error) {
	fields := strings.Split(line, string(Delimiter))
	if len(fields) != 3 {
		return Record{}, &ParseError{
			Line:   lineNo,
			Reason: fmt.Sprintf("expected 3 fields, got %d", len(fields)),
		}
	}
	if fields[0] == "" {
		return Record{}, &ParseError{Line: lineNo, Reason: "empty name"}
	}

	ciphertext, err := ciphertextEncoding.DecodeString(fields[2])
	if err != nil {
		return Record{}, &ParseError{Line: lineNo, Reason: "ciphertext is not base64: " + err.Error()}
	}

	return Record{Name: fields[0], Link: fields[1], Ciphertext: ciphertext}, nil
}

// Save rewrites the whole file through a temp file and rename, so a crash
// leaves either the old or the new contents.
func (f *FlatFile) Save(records []Record) error {
	var buf bytes.Buffer
	for i, r := range records {
		if err := validateStored(r.Name, r.Link); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		buf.WriteString(r.Name)
		buf.WriteByte(Delimiter)
		buf.WriteString(r.Link)
		buf.WriteByte(Delimiter)
		buf.WriteString(ciphertextEncoding.EncodeToString(r.Ciphertext))
		buf.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(f.path), DirMode); err != nil {
		return ioError("create store directory", err)
	}
	if err := atomic.WriteFile(f.path, &buf); err != nil {
		return ioError("write store", err)
	}
	if err := os.Chmod(f.path, FileMode); err != nil {
		return ioError("set store permissions", err)
	}
	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (f *FlatFile) Close() error {
	return nil
}
