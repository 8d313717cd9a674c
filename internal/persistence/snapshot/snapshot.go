// Package snapshot stores baseline datasets as a JSON header line followed
// by a gob body, zstd compressed.
package snapshot

import (
	"bufio"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"agrifood.ai/internal/sim/baseline"
	"agrifood.ai/internal/sim/digest"
)

const Version = 1

var ErrVersion = errors.New("unsupported snapshot version")

type Header struct {
	Version   int    `json:"version"`
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	Items     int    `json:"items"`
	Years     [2]int `json:"years"`
	CreatedAt int64  `json:"created_at"`
}

type SnapshotV1 struct {
	Header  Header
	Dataset baseline.Dataset
}

// New assembles the dataset once to validate it and to record the digest of
// the baseline data block it produces.
func New(ds *baseline.Dataset) (SnapshotV1, error) {
	db, err := baseline.Assemble(ds)
	if err != nil {
		return SnapshotV1{}, err
	}
	sum, err := digest.DataBlock(db)
	if err != nil {
		return SnapshotV1{}, err
	}
	h := Header{
		Version:   Version,
		Name:      ds.Name,
		Digest:    sum,
		Items:     len(ds.Items),
		CreatedAt: time.Now().Unix(),
	}
	h.Years = [2]int{ds.Years[0], ds.Years[len(ds.Years)-1]}
	return SnapshotV1{Header: h, Dataset: *ds}, nil
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

// Loader reads the dataset from path on every call.
func Loader(path string) baseline.Loader {
	return func(ctx context.Context) (*baseline.Dataset, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := ReadSnapshot(path)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", filepath.Base(path), err)
		}
		return &snap.Dataset, nil
	}
}
