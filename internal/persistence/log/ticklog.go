package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/NeruoDissident/FracturedCity/internal/protocol"
)

// Entry is one tick's record on the replay log: the state digest plus every
// event emitted that tick. Replays verify by comparing digests line by line.
type Entry struct {
	Tick   uint64            `json:"tick"`
	Digest string            `json:"digest"`
	Stats  protocol.JobStats `json:"stats"`
	Events []protocol.Event  `json:"events,omitempty"`
}

// Writer appends zstd-compressed JSONL tick entries.
type Writer struct {
	f   *os.File
	zw  *zstd.Encoder
	enc *json.Encoder
}

func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{f: f, zw: zw, enc: json.NewEncoder(zw)}, nil
}

func (w *Writer) Append(e Entry) error {
	if err := w.enc.Encode(&e); err != nil {
		return fmt.Errorf("tick log append: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Reader streams entries back out of a log file.
type Reader struct {
	f   *os.File
	zr  *zstd.Decoder
	dec *json.Decoder
}

func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	zr, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{f: f, zr: zr, dec: json.NewDecoder(zr)}, nil
}

// Next returns io.EOF after the last entry.
func (r *Reader) Next() (Entry, error) {
	var e Entry
	err := r.dec.Decode(&e)
	return e, err
}

func (r *Reader) Close() error {
	r.zr.Close()
	return r.f.Close()
}

// ReadAll is a convenience for tools and tests.
func ReadAll(path string) ([]Entry, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var out []Entry
	for {
		e, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}
