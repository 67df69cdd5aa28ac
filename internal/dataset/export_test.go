package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"labelsense/internal/annotation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(class int) annotation.Annotation {
	return annotation.Annotation{Class: class, BBox: annotation.NewBBox(0.5, 0.5, 0.25, 0.5)}
}

// fixture creates an image folder with n fake images, all annotated.
func fixture(t *testing.T, n int) (string, map[string][]annotation.Annotation) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "aircraft")
	require.NoError(t, os.Mkdir(dir, 0o755))

	anns := make(map[string][]annotation.Annotation)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("img%02d.jpg", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("jpegdata"), 0o644))
		anns[name] = []annotation.Annotation{box(i % 2)}
	}
	return dir, anns
}

func TestSplit(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}

	train, val := Split(names, 80, 1)
	assert.Len(t, train, 8)
	assert.Len(t, val, 2)
	assert.ElementsMatch(t, names, append(append([]string{}, train...), val...))
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, names)

	again, _ := Split(names, 80, 1)
	assert.Equal(t, train, again)

	train, val = Split(names[:3], 50, 1)
	assert.Len(t, train, 1)
	assert.Len(t, val, 2)

	train, val = Split(names, 0, 1)
	assert.Empty(t, train)
	assert.Len(t, val, 10)

	train, val = Split(names, 100, 1)
	assert.Len(t, train, 10)
	assert.Empty(t, val)
}

func TestExport(t *testing.T) {
	src, anns := fixture(t, 5)
	anns["unlabelled.jpg"] = nil
	out := t.TempDir()

	var progress []int
	res, err := Export(context.Background(), Options{
		ImageFolder:  src,
		OutputDir:    out,
		Classes:      []string{"Helicopter", "SAM Site"},
		Annotations:  anns,
		TrainPercent: 60,
		Seed:         99,
		Progress:     func(done, total int) { progress = append(progress, done*10+total) },
	})
	require.NoError(t, err)

	dir := filepath.Join(out, "aircraft")
	assert.Equal(t, dir, res.Dir)
	assert.Len(t, res.Train, 3)
	assert.Len(t, res.Val, 2)
	assert.Equal(t, 5, res.Boxes)
	assert.Equal(t, int64(5*len("jpegdata")), res.Bytes)
	assert.Equal(t, []int{15, 25, 35, 45, 55}, progress)

	for _, name := range res.Train {
		assert.FileExists(t, filepath.Join(dir, "images", SplitTrain, name))
		assert.FileExists(t, filepath.Join(dir, "labels", SplitTrain, LabelName(name)))
	}
	for _, name := range res.Val {
		assert.FileExists(t, filepath.Join(dir, "images", SplitVal, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "images", SplitTrain, "unlabelled.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "images", SplitVal, "unlabelled.jpg"))

	label, err := os.ReadFile(filepath.Join(dir, "labels", SplitVal, LabelName(res.Val[0])))
	require.NoError(t, err)
	assert.Regexp(t, `^[01] 0.5 0.5 0.25 0.5\n$`, string(label))

	m, err := ReadManifest(filepath.Join(dir, "aircraft.yaml"))
	require.NoError(t, err)
	assert.Equal(t, &Manifest{
		Path:  dir,
		Train: "images/train",
		Val:   "images/val",
		NC:    2,
		Names: []string{"Helicopter", "SAM Site"},
	}, m)
	assert.Equal(t, filepath.Join(dir, "aircraft.yaml"), res.ManifestPath)
	assert.Contains(t, res.Summary(), "Train: 3 images, Val: 2 images")
}

func TestExportSameSeedSameSplit(t *testing.T) {
	src, anns := fixture(t, 12)
	opts := Options{ImageFolder: src, Annotations: anns, TrainPercent: 75, Seed: 5}

	opts.OutputDir = t.TempDir()
	first, err := Export(context.Background(), opts)
	require.NoError(t, err)

	opts.OutputDir = t.TempDir()
	second, err := Export(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, first.Train, second.Train)
	assert.Equal(t, first.Val, second.Val)
}

func TestExportErrors(t *testing.T) {
	src, anns := fixture(t, 2)

	_, err := Export(context.Background(), Options{ImageFolder: src, OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrNothingToExport)

	_, err = Export(context.Background(), Options{ImageFolder: src, OutputDir: t.TempDir(), Annotations: anns, TrainPercent: 101})
	assert.ErrorIs(t, err, ErrInvalidTrainPercent)

	anns["gone.jpg"] = []annotation.Annotation{box(0)}
	_, err = Export(context.Background(), Options{ImageFolder: src, OutputDir: t.TempDir(), Annotations: anns, TrainPercent: 100})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExportCancelled(t *testing.T) {
	src, anns := fixture(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Export(ctx, Options{ImageFolder: src, OutputDir: t.TempDir(), Annotations: anns, TrainPercent: 50})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, res.Bytes)
	assert.Empty(t, res.ManifestPath)
}

func TestLabelName(t *testing.T) {
	assert.Equal(t, "a.txt", LabelName("a.jpg"))
	assert.Equal(t, "img.v2.txt", LabelName("img.v2.png"))
	assert.Equal(t, "noext.txt", LabelName("noext"))
}
