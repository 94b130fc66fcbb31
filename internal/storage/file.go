package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"taxigrid/internal/geom"
)

// FileStore keeps the fleet as "x y" lines. Paths ending in .zst are zstd
// compressed.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) compressed() bool {
	return strings.HasSuffix(f.path, ".zst")
}

// Load returns no points when the file does not exist yet.
func (f *FileStore) Load(ctx context.Context) ([]geom.Point, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	if f.compressed() {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	}
	return readPoints(r)
}

func readPoints(r io.Reader) ([]geom.Point, error) {
	var pts []geom.Point
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want \"x y\", got %q", line, sc.Text())
		}
		x, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		y, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		pts = append(pts, geom.Pt(x, y))
	}
	return pts, sc.Err()
}

// Save overwrites the file through a temp file and rename, so readers never
// see a partial fleet.
func (f *FileStore) Save(ctx context.Context, pts []geom.Point) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := f.write(tmp, pts); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileStore) write(w io.Writer, pts []geom.Point) error {
	var enc *zstd.Encoder
	if f.compressed() {
		var err error
		enc, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		w = enc
	}
	bw := bufio.NewWriter(w)
	for _, p := range pts {
		bw.WriteString(strconv.Itoa(p.X))
		bw.WriteByte(' ')
		bw.WriteString(strconv.Itoa(p.Y))
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if enc != nil {
		return enc.Close()
	}
	return nil
}
