package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"skirmish/world"
)

// DefaultBatch is how many episodes share one trace file.
const DefaultBatch = 10

// Entry is one processed tick of an episode.
type Entry struct {
	Episode  int                      `json:"episode"`
	Tick     int                      `json:"tick"`
	Phase    string                   `json:"phase"`
	Rewards  map[world.UnitID]float64 `json:"rewards,omitempty"`
	TDErrors map[world.UnitID]float64 `json:"td_errors,omitempty"`
	Swept    []world.UnitID           `json:"swept,omitempty"`
	Commands world.Commands           `json:"commands,omitempty"`
	Terminal bool                     `json:"terminal,omitempty"`
}

// Tracer receives tick entries.
type Tracer interface {
	Trace(e Entry) error
	Close() error
}

// Writer appends entries as zstd-compressed JSON lines, starting a new file
// every batch of episodes.
type Writer struct {
	dir    string
	prefix string
	batch  int

	mu    sync.Mutex
	cur   int
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
	open  bool
	files []string
}

func NewWriter(dir, prefix string, batch int) *Writer {
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Writer{
		dir:    dir,
		prefix: prefix,
		batch:  batch,
	}
}

func (w *Writer) Trace(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	batch := e.Episode / w.batch
	if !w.open || batch != w.cur {
		if err := w.rotateLocked(batch); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Files lists the paths written so far, oldest first.
func (w *Writer) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.files...)
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) rotateLocked(batch int) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := w.pathForBatch(batch)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.cur = batch
	w.open = true
	w.files = append(w.files, path)
	return nil
}

func (w *Writer) closeLocked() error {
	if !w.open {
		return nil
	}
	var err error
	if ferr := w.w.Flush(); ferr != nil {
		err = ferr
	}
	if cerr := w.enc.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := w.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	w.f, w.enc, w.w = nil, nil, nil
	w.open = false
	return err
}

func (w *Writer) pathForBatch(batch int) string {
	first := batch * w.batch
	return filepath.Join(w.dir, fmt.Sprintf("%s-%06d.jsonl.zst", w.prefix, first))
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Trace(Entry) error { return nil }
func (Nop) Close() error      { return nil }
