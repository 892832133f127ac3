package engine

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	gd "github.com/gofhir/gen3dict"
	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/minio/highwayhash"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

var fingerprintKey = []byte("gen3dict-schema-fingerprint-key!")

// Fingerprint returns the hex highwayhash of data.
func Fingerprint(data []byte) (string, error) {
	hash, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return "", err
	}
	if _, err := hash.Write(data); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Writer serialises schemas into an output location.
type Writer struct {
	fs            afs.Service
	dir           string
	skipUnchanged bool
	log           *logger.Logger
}

// NewWriter creates a Writer for dir.
func NewWriter(fs afs.Service, dir string, skipUnchanged bool, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.Default()
	}
	return &Writer{fs: fs, dir: strings.TrimSuffix(dir, "/"), skipUnchanged: skipUnchanged, log: log}
}

// Location returns the URL of name inside the output directory.
func (w *Writer) Location(name string) string {
	return w.dir + "/" + name
}

// EnsureDir fails unless the output directory exists. With create set, a
// missing directory is created instead.
func (w *Writer) EnsureDir(ctx context.Context, create bool) error {
	exists, err := w.fs.Exists(ctx, w.dir)
	if err != nil {
		return fmt.Errorf("failed to check output directory %s: %w", w.dir, err)
	}
	if exists {
		return nil
	}
	if !create {
		return fmt.Errorf("%w: %s", ErrNoOutputDir, w.dir)
	}
	if err := w.fs.Create(ctx, w.dir, os.ModeDir|0o755, true); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", w.dir, err)
	}
	return nil
}

// WriteYAML writes v as YAML to {dir}/{name}.yaml and fills o with the file,
// digest and write status.
func (w *Writer) WriteYAML(ctx context.Context, name string, v any, o *gd.Outcome) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return w.write(ctx, name+".yaml", buf.Bytes(), o)
}

// WriteJSON writes v as indented JSON to {dir}/{file}.
func (w *Writer) WriteJSON(ctx context.Context, file string, v any, o *gd.Outcome) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", file, err)
	}
	return w.write(ctx, file, append(data, '\n'), o)
}

func (w *Writer) write(ctx context.Context, file string, data []byte, o *gd.Outcome) error {
	digest, err := Fingerprint(data)
	if err != nil {
		return err
	}
	location := w.Location(file)
	o.File = location
	o.Digest = digest

	if w.skipUnchanged {
		if prev, ok := w.digestOf(ctx, location); ok && prev == digest {
			w.log.Debug("%s unchanged (%s)", location, digest)
			o.Unchanged = true
			return nil
		}
	}
	if err := w.fs.Upload(ctx, location, 0o644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", location, err)
	}
	o.Written = true
	w.log.Debug("wrote %s (%d bytes)", location, len(data))
	return nil
}

func (w *Writer) digestOf(ctx context.Context, location string) (string, bool) {
	exists, err := w.fs.Exists(ctx, location)
	if err != nil || !exists {
		return "", false
	}
	data, err := w.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return "", false
	}
	digest, err := Fingerprint(data)
	if err != nil {
		return "", false
	}
	return digest, true
}
