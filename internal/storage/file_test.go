package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"taxigrid/internal/geom"
)

var fleet = []geom.Point{{X: 0, Y: 0}, {X: -12, Y: 40}, {X: 99, Y: 7}, {X: 3, Y: -3}}

func TestFileStore_RoundTrip(t *testing.T) {
	for _, name := range []string{"taxi_state.txt", "taxi_state.txt.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			fs := NewFileStore(path)

			got, err := fs.Load(context.Background())
			if err != nil || got != nil {
				t.Fatalf("missing file: got %v, %v", got, err)
			}
			if err := fs.Save(context.Background(), fleet); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err = fs.Load(context.Background())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !slices.Equal(got, fleet) {
				t.Fatalf("Load = %v, want %v", got, fleet)
			}

			entries, _ := os.ReadDir(filepath.Dir(path))
			if len(entries) != 1 {
				t.Fatalf("temp files left behind: %v", entries)
			}
		})
	}
}

func TestFileStore_PlainFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxi_state.txt")
	if err := NewFileStore(path).Save(context.Background(), fleet[:2]); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) != "0 0\n-12 40\n" {
		t.Fatalf("unexpected file contents %q", raw)
	}
}

func TestFileStore_Compressed(t *testing.T) {
	big := make([]geom.Point, 5000)
	for i := range big {
		big[i] = geom.Pt(i%100, i/100)
	}
	dir := t.TempDir()
	plain := NewFileStore(filepath.Join(dir, "fleet.txt"))
	packed := NewFileStore(filepath.Join(dir, "fleet.txt.zst"))
	for _, fs := range []*FileStore{plain, packed} {
		if err := fs.Save(context.Background(), big); err != nil {
			t.Fatalf("Save %s: %v", fs.Path(), err)
		}
	}

	raw, err := os.ReadFile(packed.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte{0x28, 0xb5, 0x2f, 0xfd}) {
		t.Fatalf("missing zstd frame magic: % x", raw[:min(4, len(raw))])
	}
	plainInfo, _ := os.Stat(plain.Path())
	if int64(len(raw)) >= plainInfo.Size() {
		t.Fatalf("compressed %d bytes, plain %d bytes", len(raw), plainInfo.Size())
	}

	got, err := packed.Load(context.Background())
	if err != nil || !slices.Equal(got, big) {
		t.Fatalf("Load: %d points, %v", len(got), err)
	}
}

func TestFileStore_Overwrites(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "s.txt"))
	fs.Save(context.Background(), fleet)
	fs.Save(context.Background(), []geom.Point{{X: 5, Y: 5}})

	got, _ := fs.Load(context.Background())
	if !slices.Equal(got, []geom.Point{{X: 5, Y: 5}}) {
		t.Fatalf("Load after overwrite = %v", got)
	}
}

func TestReadPoints(t *testing.T) {
	got, err := readPoints(strings.NewReader("1 2\n\n  -3   4 \n"))
	if err != nil {
		t.Fatalf("readPoints: %v", err)
	}
	if !slices.Equal(got, []geom.Point{{X: 1, Y: 2}, {X: -3, Y: 4}}) {
		t.Fatalf("readPoints = %v", got)
	}

	for _, bad := range []string{"1\n", "1 2 3\n", "a 2\n", "1 2.5\n"} {
		if _, err := readPoints(strings.NewReader(bad)); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
