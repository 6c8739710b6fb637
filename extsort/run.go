package extsort

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

const (
	idSize        = 8
	runBufferSize = 128 * 1024
)

// run is an opaque handle to one spilled sorted chunk: a temp file holding
// ascending, within-run-unique ids, plus its element count.
type run struct {
	path       string
	count      int
	compressed bool
}

// writeRun writes ids (already sorted and deduplicated) to path as a
// little-endian uint64 stream, zstd-framed when compressed is set.
// Runs are written once and read back once during the merge, so stream
// compression costs nothing in seekability.
func writeRun(path string, ids []uint64, compressed bool) (run, error) {
	f, err := os.Create(path)
	if err != nil {
		return run{}, &ErrResource{Op: "create spill run", Path: path, Err: err}
	}

	var w io.Writer = f
	var enc *zstd.Encoder
	if compressed {
		enc, err = zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return run{}, &ErrResource{Op: "compress spill run", Path: path, Err: err}
		}
		w = enc
	}
	bw := bufio.NewWriterSize(w, runBufferSize)

	var buf [idSize]byte
	for _, id := range ids {
		binary.LittleEndian.PutUint64(buf[:], id)
		if _, err := bw.Write(buf[:]); err != nil {
			return run{}, failRun(path, f, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return run{}, failRun(path, f, err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return run{}, failRun(path, f, err)
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return run{}, &ErrResource{Op: "write spill run", Path: path, Err: err}
	}
	return run{path: path, count: len(ids), compressed: compressed}, nil
}

func failRun(path string, f *os.File, err error) error {
	_ = f.Close()
	_ = os.Remove(path)
	return &ErrResource{Op: "write spill run", Path: path, Err: err}
}

// open returns a sequential reader over the run's ids.
func (r run) open() (*runReader, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, &ErrResource{Op: "open spill run", Path: r.path, Err: err}
	}

	rr := &runReader{file: f}
	var src io.Reader = f
	if r.compressed {
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, &ErrResource{Op: "decompress spill run", Path: r.path, Err: err}
		}
		rr.dec = dec
		src = dec
	}
	rr.br = bufio.NewReaderSize(src, runBufferSize)
	return rr, nil
}

// remove deletes the run file from disk.
func (r run) remove() {
	_ = os.Remove(r.path)
}

// runReader streams ids back from a spilled run.
type runReader struct {
	file *os.File
	dec  *zstd.Decoder
	br   *bufio.Reader
}

// next returns the next id, or io.EOF when the run is exhausted.
func (r *runReader) next() (uint64, error) {
	var buf [idSize]byte
	if _, err := io.ReadFull(r.br, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (r *runReader) close() error {
	if r.dec != nil {
		r.dec.Close()
	}
	return r.file.Close()
}

// sliceSource adapts an in-memory sorted slice to the merge input shape,
// so merge logic is testable without file I/O.
type sliceSource struct {
	ids []uint64
	pos int
}

func (s *sliceSource) next() (uint64, error) {
	if s.pos >= len(s.ids) {
		return 0, io.EOF
	}
	id := s.ids[s.pos]
	s.pos++
	return id, nil
}
