// Package project provides project file handling and persistence.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"labelsense/internal/annotation"
)

// File represents a LabelSense project file (.json).
//
// Annotations are keyed by image file name (no directory), each holding the
// ordered boxes for that image.
type File struct {
	ImageFolder       string                             `json:"image_folder"`
	CurrentImageIndex int                                `json:"current_image_index"`
	Classes           []string                           `json:"classes"`
	Annotations       map[string][]annotation.Annotation `json:"annotations"`

	// Dropped counts boxes discarded by Validate after loading.
	Dropped int `json:"-"`
}

// New creates a project for an image folder.
func New(imageFolder string, classes []string) *File {
	return &File{
		ImageFolder: imageFolder,
		Classes:     slices.Clone(classes),
		Annotations: make(map[string][]annotation.Annotation),
	}
}

// Load loads a project from a .json file. Malformed boxes are dropped and
// counted in Dropped; the rest of the project is kept.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", path, err)
	}
	proj.Dropped = proj.Validate()

	return &proj, nil
}

// Save saves the project to a file.
func (p *File) Save(path string) error {
	out := *p
	if out.Annotations == nil {
		out.Annotations = map[string][]annotation.Annotation{}
	}
	if out.Classes == nil {
		out.Classes = []string{}
	}

	data, err := json.MarshalIndent(&out, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	return nil
}

// Validate removes boxes that fail geometry or class checks and images left
// without boxes, and clamps the image index. It returns the number of boxes
// removed.
func (p *File) Validate() int {
	if p.Annotations == nil {
		p.Annotations = make(map[string][]annotation.Annotation)
	}
	if p.CurrentImageIndex < 0 {
		p.CurrentImageIndex = 0
	}

	dropped := 0
	for name, anns := range p.Annotations {
		kept := anns[:0]
		for _, a := range anns {
			if a.Validate() != nil {
				dropped++
				continue
			}
			kept = append(kept, a)
		}
		if len(kept) == 0 {
			delete(p.Annotations, name)
			continue
		}
		p.Annotations[name] = kept
	}
	return dropped
}

// ImageFolderPath returns the absolute image folder. A relative folder is
// taken relative to the project file.
func (p *File) ImageFolderPath(projectPath string) string {
	if p.ImageFolder == "" || filepath.IsAbs(p.ImageFolder) {
		return p.ImageFolder
	}
	return filepath.Join(filepath.Dir(projectPath), p.ImageFolder)
}

// AnnotatedImages returns the names of images with at least one box, sorted.
func (p *File) AnnotatedImages() []string {
	names := make([]string, 0, len(p.Annotations))
	for name, anns := range p.Annotations {
		if len(anns) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
