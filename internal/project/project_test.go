package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"labelsense/internal/annotation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.json")

	p := New("/data/aircraft", []string{"Helicopter", "SAM Site"})
	p.CurrentImageIndex = 3
	p.Annotations["a.jpg"] = []annotation.Annotation{
		{Class: 1, BBox: annotation.NewBBox(0.4, 0.4375, 0.4, 0.375)},
		{Class: 0, BBox: annotation.NewBBox(0.1, 0.1, 0.05, 0.05)},
	}
	require.NoError(t, p.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p.ImageFolder, got.ImageFolder)
	assert.Equal(t, 3, got.CurrentImageIndex)
	assert.Equal(t, p.Classes, got.Classes)
	assert.Equal(t, p.Annotations, got.Annotations)
	assert.Zero(t, got.Dropped)
}

func TestSaveUsesDocumentedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.json")
	p := New("imgs", []string{"Helicopter"})
	p.Annotations["b.png"] = []annotation.Annotation{{Class: 0, BBox: annotation.NewBBox(0.5, 0.5, 0.2, 0.2)}}
	require.NoError(t, p.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"image_folder\"")

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.ElementsMatch(t, []string{"image_folder", "current_image_index", "classes", "annotations"}, keys(raw))

	var anns map[string][]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["annotations"], &anns))
	assert.JSONEq(t, `[0.5, 0.5, 0.2, 0.2]`, string(anns["b.png"][0]["bbox"]))
	assert.JSONEq(t, `0`, string(anns["b.png"][0]["class"]))
}

func TestSaveEmptyProject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, (&File{}).Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"annotations": {}`)
	assert.Contains(t, string(data), `"classes": []`)
}

func TestLoadDropsMalformedBoxes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.json")
	data := `{
		"image_folder": "imgs",
		"current_image_index": -2,
		"classes": ["a", "b"],
		"annotations": {
			"good.jpg": [
				{"class": 0, "bbox": [0.5, 0.5, 0.2, 0.2]},
				{"class": 1, "bbox": [0.5, 0.5, 0.0, 0.2]},
				{"class": -1, "bbox": [0.5, 0.5, 0.2, 0.2]}
			],
			"bad.jpg": [
				{"class": 0, "bbox": [1.5, 0.5, 0.2, 0.2]}
			]
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Dropped)
	assert.Len(t, p.Annotations["good.jpg"], 1)
	assert.NotContains(t, p.Annotations, "bad.jpg")
	assert.Equal(t, 0, p.CurrentImageIndex)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"annotations": {"a.jpg": [{"class": 0, "bbox": [1, 2]}]}}`), 0644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestLoadMissingSectionsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"image_folder": "x"}`), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, p.Annotations)
	assert.Empty(t, p.Classes)
}

func TestImageFolderPath(t *testing.T) {
	p := &File{ImageFolder: "images"}
	assert.Equal(t, filepath.Join("/projects", "images"), p.ImageFolderPath("/projects/p.json"))

	abs := filepath.Join(t.TempDir(), "images")
	p.ImageFolder = abs
	assert.Equal(t, abs, p.ImageFolderPath("/projects/p.json"))

	p.ImageFolder = ""
	assert.Equal(t, "", p.ImageFolderPath("/projects/p.json"))
}

func TestAnnotatedImages(t *testing.T) {
	p := New("", nil)
	p.Annotations["z.jpg"] = []annotation.Annotation{{BBox: annotation.NewBBox(0.5, 0.5, 0.1, 0.1)}}
	p.Annotations["a.jpg"] = []annotation.Annotation{{BBox: annotation.NewBBox(0.5, 0.5, 0.1, 0.1)}}
	p.Annotations["empty.jpg"] = nil

	assert.Equal(t, []string{"a.jpg", "z.jpg"}, p.AnnotatedImages())
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
