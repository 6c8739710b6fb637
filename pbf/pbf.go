// Package pbf adapts an OSM PBF file to the builder's record stream.
//
// The heavy lifting (decompression, protobuf decoding, fan-out across
// decoder goroutines) is done by github.com/paulmach/osm/osmpbf; this
// package only narrows its objects down to (id, tags) node records.
package pbf

import (
	"context"
	"io"
	"os"
	"runtime"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/hupe1980/osmnode"
)

// Source streams node records from a PBF file. It implements
// osmnode.Source.
type Source struct {
	file    *os.File
	scanner *osmpbf.Scanner
}

var _ osmnode.Source = (*Source)(nil)

// Open opens the PBF file at path. procs sets the number of decoder
// goroutines; values below 1 use GOMAXPROCS. The context cancels the
// underlying scanner.
func Open(ctx context.Context, path string, procs int) (*Source, error) {
	if procs < 1 {
		procs = runtime.GOMAXPROCS(0)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	scanner := osmpbf.New(ctx, f, procs)
	// Ways and relations are irrelevant here; skipping them avoids
	// decoding the bulk of most extracts.
	scanner.SkipWays = true
	scanner.SkipRelations = true

	return &Source{file: f, scanner: scanner}, nil
}

// Next returns the next node record, or io.EOF at end of stream.
// Untagged nodes are returned with nil tags; the builder skips them
// without classification.
func (s *Source) Next() (osmnode.Node, error) {
	for s.scanner.Scan() {
		node, ok := s.scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		record := osmnode.Node{ID: uint64(node.ID)}
		if len(node.Tags) > 0 {
			record.Tags = node.TagMap()
		}
		return record, nil
	}
	if err := s.scanner.Err(); err != nil {
		return osmnode.Node{}, err
	}
	return osmnode.Node{}, io.EOF
}

// Close releases the scanner and the underlying file.
func (s *Source) Close() error {
	err := s.scanner.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}
