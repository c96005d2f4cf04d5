package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/NeruoDissident/FracturedCity/internal/sim/world"
)

// Header is a plain-text JSON first line so a snapshot's provenance can be
// inspected with head(1) without decompressing the body.
type Header struct {
	Version int       `json:"version"`
	Tick    uint64    `json:"tick"`
	Digest  string    `json:"digest"`
	SavedAt time.Time `json:"saved_at"`
}

const headerVersion = 1

// Write stores a snapshot atomically: JSON header line, then the
// zstd-compressed gob body, written to a temp file and renamed into place.
func Write(path string, tick uint64, digest string, state world.SnapshotV1) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	bw := bufio.NewWriter(f)
	hdr := Header{Version: headerVersion, Tick: tick, Digest: digest, SavedAt: time.Now().UTC()}
	hb, err := json.Marshal(hdr)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		f.Close()
		return err
	}

	zw, err := zstd.NewWriter(bw)
	if err != nil {
		f.Close()
		return err
	}
	if err := gob.NewEncoder(zw).Encode(&state); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("snapshot encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Read loads a snapshot written by Write.
func Read(path string) (Header, world.SnapshotV1, error) {
	var hdr Header
	var state world.SnapshotV1

	f, err := os.Open(path)
	if err != nil {
		return hdr, state, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return hdr, state, fmt.Errorf("snapshot header: %w", err)
	}
	if err := json.Unmarshal(line, &hdr); err != nil {
		return hdr, state, fmt.Errorf("snapshot header: %w", err)
	}
	if hdr.Version != headerVersion {
		return hdr, state, fmt.Errorf("unsupported snapshot version %d", hdr.Version)
	}

	zr, err := zstd.NewReader(br)
	if err != nil {
		return hdr, state, err
	}
	defer zr.Close()
	if err := gob.NewDecoder(zr).Decode(&state); err != nil {
		return hdr, state, fmt.Errorf("snapshot decode: %w", err)
	}
	return hdr, state, nil
}

// Filename is the canonical snapshot name for a tick.
func Filename(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("snapshot-%012d.bin", tick))
}
