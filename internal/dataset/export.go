// Package dataset writes annotated images out as a YOLO training dataset.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"labelsense/internal/annotation"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Split directory names.
const (
	SplitTrain = "train"
	SplitVal   = "val"
)

var (
	// ErrNothingToExport is returned when no image has any box.
	ErrNothingToExport = errors.New("dataset: no annotated images")
	// ErrInvalidTrainPercent is returned for a percentage outside [0,100].
	ErrInvalidTrainPercent = errors.New("dataset: train percent must be within 0..100")
)

// Options describes one export.
type Options struct {
	ImageFolder  string                             // source images
	OutputDir    string                             // the dataset is created in OutputDir/<Name>
	Name         string                             // defaults to the base name of ImageFolder
	Classes      []string                           // written as names/nc
	Annotations  map[string][]annotation.Annotation // by image file name
	TrainPercent float64                            // 0..100
	Seed         uint64                             // shuffle seed; 0 picks one at random

	// Progress, if set, is called after each image is written.
	Progress func(done, total int)
}

// Manifest is the <name>.yaml file read by YOLO trainers.
type Manifest struct {
	Path  string   `yaml:"path"`
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

// Result summarizes a finished export.
type Result struct {
	Dir          string
	ManifestPath string
	Train        []string
	Val          []string
	Bytes        int64 // image bytes copied
	Boxes        int
}

// Summary renders the result for a status line or dialog.
func (r *Result) Summary() string {
	return fmt.Sprintf("Train: %d images, Val: %d images, %s boxes, %s copied",
		len(r.Train), len(r.Val), humanize.Comma(int64(r.Boxes)), humanize.Bytes(uint64(r.Bytes)))
}

// Split shuffles names with seed and cuts them at int(n*trainPercent/100).
// The input slice is not modified.
func Split(names []string, trainPercent float64, seed uint64) (train, val []string) {
	shuffled := slices.Clone(names)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	cut := int(float64(len(shuffled)) * trainPercent / 100)
	cut = min(max(cut, 0), len(shuffled))
	return shuffled[:cut], shuffled[cut:]
}

// Export copies every annotated image and writes its label file into the
// train/val layout, then writes the YAML manifest. The context is checked
// between files; a cancelled export leaves the files written so far.
func Export(ctx context.Context, opts Options) (*Result, error) {
	if opts.TrainPercent < 0 || opts.TrainPercent > 100 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrainPercent, opts.TrainPercent)
	}

	var names []string
	for name, anns := range opts.Annotations {
		if len(anns) > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, ErrNothingToExport
	}
	// map order is random; sort so the seed alone decides the split
	slices.Sort(names)

	name := opts.Name
	if name == "" {
		name = filepath.Base(filepath.Clean(opts.ImageFolder))
	}
	dir, err := filepath.Abs(filepath.Join(opts.OutputDir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dataset dir: %w", err)
	}

	for _, kind := range []string{"images", "labels"} {
		for _, split := range []string{SplitTrain, SplitVal} {
			if err := os.MkdirAll(filepath.Join(dir, kind, split), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create dataset dirs: %w", err)
			}
		}
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	train, val := Split(names, opts.TrainPercent, seed)
	res := &Result{Dir: dir, Train: train, Val: val}

	total, done := len(names), 0
	for _, part := range []struct {
		split  string
		images []string
	}{{SplitTrain, train}, {SplitVal, val}} {
		for _, img := range part.images {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			n, err := copyFile(filepath.Join(opts.ImageFolder, img), filepath.Join(dir, "images", part.split, img))
			if err != nil {
				return res, err
			}
			res.Bytes += n

			anns := opts.Annotations[img]
			if err := writeLabelFile(filepath.Join(dir, "labels", part.split, LabelName(img)), anns); err != nil {
				return res, err
			}
			res.Boxes += len(anns)

			done++
			if opts.Progress != nil {
				opts.Progress(done, total)
			}
		}
	}

	res.ManifestPath = filepath.Join(dir, name+".yaml")
	m := Manifest{
		Path:  dir,
		Train: "images/" + SplitTrain,
		Val:   "images/" + SplitVal,
		NC:    len(opts.Classes),
		Names: slices.Clone(opts.Classes),
	}
	if m.Names == nil {
		m.Names = []string{}
	}
	if err := writeManifest(res.ManifestPath, m); err != nil {
		return res, err
	}
	return res, nil
}

// LabelName maps an image file name to its label file name.
func LabelName(image string) string {
	return strings.TrimSuffix(image, filepath.Ext(image)) + ".txt"
}

// ReadManifest loads a manifest written by Export.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

func writeManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func writeLabelFile(path string, anns []annotation.Annotation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create label file: %w", err)
	}
	if err := annotation.WriteLabels(f, anns); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat image: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	// keep the source timestamp like a preserving copy
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return n, nil
}
