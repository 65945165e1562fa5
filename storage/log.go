package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"

	bc "tbb/blockchain"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Log is the append-only ledger log: one JSON record per line, oldest
// first. Records are never rewritten.
type Log struct {
	path string
	file *os.File
}

// OpenLog opens the log at path for appending, creating it if needed.
func OpenLog(path string) (*Log, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, &bc.IOError{Op: "opening ledger log", Err: err}
	}
	return &Log{path: path, file: file}, nil
}

func (l *Log) Path() string {
	return l.path
}

// Append writes one record as a single newline-terminated line. A failed
// write is truncated away so no partial record is left behind.
func (l *Log) Append(record *bc.Record) error {
	buf, err := json.Marshal(record)
	if err != nil {
		return &bc.IOError{Op: "encoding record", Err: err}
	}
	buf = append(buf, '\n')

	info, err := l.file.Stat()
	if err != nil {
		return &bc.IOError{Op: "stat ledger log", Err: err}
	}
	if _, err := l.file.Write(buf); err != nil {
		if terr := l.file.Truncate(info.Size()); terr != nil {
			log.Errorf("Couldn't truncate %s after failed append: %v", l.path, terr)
		}
		return &bc.IOError{Op: "appending record", Err: err}
	}
	log.Lvlf3("Appended block %d / %s", record.Value.Header.Number, record.Key)
	return nil
}

// Sync flushes the log to stable storage.
func (l *Log) Sync() error {
	if err := l.file.Sync(); err != nil {
		return &bc.IOError{Op: "syncing ledger log", Err: err}
	}
	return nil
}

func (l *Log) Close() error {
	if err := l.file.Close(); err != nil {
		return &bc.IOError{Op: "closing ledger log", Err: err}
	}
	return nil
}

// Scan returns a lazy iterator over the records, reading from its own file
// handle.
func (l *Log) Scan() *Scanner {
	file, err := os.Open(l.path)
	if err != nil {
		return &Scanner{err: &bc.IOError{Op: "opening ledger log", Err: err}}
	}
	return &Scanner{file: file, reader: bufio.NewReader(file)}
}

// Scanner walks the log oldest first. Iteration stops at the first record
// that fails to parse or whose key is not its block hash; Err then returns a
// CorruptLogError.
type Scanner struct {
	file   *os.File
	reader *bufio.Reader
	line   int
	record *bc.Record
	err    error
	done   bool
}

// Next advances to the next record.
func (s *Scanner) Next() bool {
	if s.err != nil || s.done {
		return false
	}
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			s.err = &bc.IOError{Op: "reading ledger log", Err: err}
			return false
		}
		eof := err == io.EOF
		if len(line) > 0 {
			s.line++
		}
		if len(bytes.TrimSpace(line)) == 0 {
			if eof {
				s.done = true
				return false
			}
			continue
		}

		record := &bc.Record{}
		if err := json.Unmarshal(line, record); err != nil {
			s.err = &bc.CorruptLogError{Line: s.line, Err: err}
			return false
		}
		if err := record.Verify(); err != nil {
			s.err = &bc.CorruptLogError{Line: s.line, Err: err}
			return false
		}
		s.record = record
		s.done = eof
		return true
	}
}

// Record returns the record read by the last successful Next.
func (s *Scanner) Record() *bc.Record {
	return s.record
}

// Line returns the 1-based line of the current record.
func (s *Scanner) Line() int {
	return s.line
}

func (s *Scanner) Err() error {
	return s.err
}

func (s *Scanner) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// ReadAll collects every record of the log.
func ReadAll(l *Log) ([]*bc.Record, error) {
	scanner := l.Scan()
	defer scanner.Close()
	var records []*bc.Record
	for scanner.Next() {
		records = append(records, scanner.Record())
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Errorf("reading %s: %w", l.path, err)
	}
	return records, nil
}
