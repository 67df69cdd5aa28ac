// Package app provides application state, events, and folder watching.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"labelsense/internal/annotation"
	"labelsense/internal/dataset"
	"labelsense/internal/image"
	"labelsense/internal/project"
)

var (
	// ErrNoImage is returned by operations that need a current image.
	ErrNoImage = errors.New("no image selected")
	// ErrNoFolder is returned when there is nothing to save or export.
	ErrNoFolder = errors.New("no image folder open")
	// ErrNoProjectPath is returned by SaveProject with no path to save to.
	ErrNoProjectPath = errors.New("project has no file path")
	// ErrFolderNotFound is returned by LoadProject when the project's image
	// folder is missing. The rest of the project is still loaded.
	ErrFolderNotFound = errors.New("image folder not found")
	// ErrLastClass is returned when removing the only remaining class.
	ErrLastClass = errors.New("at least one class is required")
)

// State holds the application state: the open folder, the per-image
// annotation store and the class list. It is safe for concurrent use;
// listeners run on the goroutine that triggered the event.
type State struct {
	mu sync.RWMutex

	// Project
	ProjectPath string
	Modified    bool

	// Images
	ImageFolder  string
	ImageFiles   []string // sorted file names
	CurrentIndex int      // -1 when the folder is empty

	// Classes
	Classes      []string
	CurrentClass int

	annotations    map[string][]annotation.Annotation
	defaultClasses []string
	images         *image.Cache

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventProjectLoaded     EventType = iota // data: project path
	EventProjectSaved                       // data: project path
	EventFolderOpened                       // data: folder
	EventImageListChanged                   // data: []string file names
	EventImageSelected                      // data: image name
	EventAnnotationsChanged                 // data: image name
	EventClassesChanged                     // data: []string class names
	EventClassSelected                      // data: class id
	EventModified                           // data: bool
	EventExported                           // data: *dataset.Result
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewState creates a new application state. defaultClasses seeds the class
// list and is restored when a project has none. A nil cache decodes every
// image on demand.
func NewState(defaultClasses []string, images *image.Cache) *State {
	if len(defaultClasses) == 0 {
		defaultClasses = []string{"object"}
	}
	return &State{
		CurrentIndex:   -1,
		Classes:        slices.Clone(defaultClasses),
		annotations:    make(map[string][]annotation.Annotation),
		defaultClasses: slices.Clone(defaultClasses),
		images:         images,
		listeners:      make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the project as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// IsModified reports whether there are unsaved changes.
func (s *State) IsModified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Modified
}

// OpenFolder makes dir the image folder and selects its first image.
// Annotations are kept when reopening the same folder. A new folder starts
// from the YOLO label files found next to its images.
func (s *State) OpenFolder(dir string) error {
	files, err := image.ListImages(dir)
	if err != nil {
		return err
	}

	s.mu.RLock()
	sameFolder := filepath.Clean(dir) == filepath.Clean(s.ImageFolder)
	s.mu.RUnlock()
	var imported map[string][]annotation.Annotation
	if !sameFolder {
		imported = ImportLabels(dir, files)
	}

	s.mu.Lock()
	if !sameFolder {
		s.annotations = imported
		s.ProjectPath = ""
	}
	s.ImageFolder = dir
	s.ImageFiles = files
	s.CurrentIndex = -1
	if len(files) > 0 {
		s.CurrentIndex = 0
	}
	s.mu.Unlock()

	if s.images != nil {
		s.images.Purge()
	}
	s.Emit(EventFolderOpened, dir)
	s.Emit(EventImageListChanged, slices.Clone(files))
	s.emitSelected()
	return nil
}

// ImportLabels reads the YOLO label file next to each image ("a.jpg" ->
// "a.txt"). Missing files are skipped; unreadable files and invalid boxes
// are logged and dropped.
func ImportLabels(dir string, images []string) map[string][]annotation.Annotation {
	out := make(map[string][]annotation.Annotation)
	total := 0
	for _, name := range images {
		path := filepath.Join(dir, dataset.LabelName(name))
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		anns, err := annotation.ReadLabels(f)
		f.Close()
		if err != nil {
			log.Printf("Skipping labels %s: %v", path, err)
			continue
		}
		anns = slices.DeleteFunc(anns, func(a annotation.Annotation) bool {
			if err := a.Validate(); err != nil {
				log.Printf("Dropping box in %s: %v", path, err)
				return true
			}
			return false
		})
		if len(anns) > 0 {
			out[name] = anns
			total += len(anns)
		}
	}
	if total > 0 {
		log.Printf("Imported %d boxes for %d images from %s", total, len(out), dir)
	}
	return out
}

// RefreshImages re-reads the image folder, keeping the current image
// selected if it still exists.
func (s *State) RefreshImages() error {
	s.mu.RLock()
	dir := s.ImageFolder
	s.mu.RUnlock()
	if dir == "" {
		return ErrNoFolder
	}

	files, err := image.ListImages(dir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	current := s.currentNameLocked()
	s.ImageFiles = files
	idx := slices.Index(files, current)
	changedSelection := idx < 0
	if changedSelection {
		idx = min(max(s.CurrentIndex, 0), len(files)-1)
	}
	s.CurrentIndex = idx
	s.mu.Unlock()

	s.Emit(EventImageListChanged, slices.Clone(files))
	if changedSelection {
		s.emitSelected()
	}
	return nil
}

// SelectImage makes the i-th image current.
func (s *State) SelectImage(i int) error {
	s.mu.Lock()
	if i < 0 || i >= len(s.ImageFiles) {
		n := len(s.ImageFiles)
		s.mu.Unlock()
		return fmt.Errorf("image index %d out of range [0,%d)", i, n)
	}
	s.CurrentIndex = i
	s.mu.Unlock()

	s.emitSelected()
	return nil
}

// NextImage advances to the next image. It reports false at the end.
func (s *State) NextImage() bool {
	s.mu.RLock()
	i, n := s.CurrentIndex, len(s.ImageFiles)
	s.mu.RUnlock()
	if i+1 >= n {
		return false
	}
	return s.SelectImage(i+1) == nil
}

// PrevImage goes back one image. It reports false at the start.
func (s *State) PrevImage() bool {
	s.mu.RLock()
	i := s.CurrentIndex
	s.mu.RUnlock()
	if i <= 0 {
		return false
	}
	return s.SelectImage(i-1) == nil
}

// CurrentImageIndex returns the index of the current image, or -1.
func (s *State) CurrentImageIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentIndex
}

// Folder returns the open image folder, or "".
func (s *State) Folder() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ImageFolder
}

// ProjectFile returns the path the project was loaded from or saved to,
// or "".
func (s *State) ProjectFile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ProjectPath
}

// ImageNames returns a copy of the sorted image file names.
func (s *State) ImageNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ImageFiles)
}

// CurrentImageName returns the current image file name, or "".
func (s *State) CurrentImageName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentNameLocked()
}

func (s *State) currentNameLocked() string {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.ImageFiles) {
		return ""
	}
	return s.ImageFiles[s.CurrentIndex]
}

// CurrentImagePath returns the full path of the current image, or "".
func (s *State) CurrentImagePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name := s.currentNameLocked()
	if name == "" {
		return ""
	}
	return filepath.Join(s.ImageFolder, name)
}

// ImageCounter returns "current/total" with a 1-based current.
func (s *State) ImageCounter() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("%d/%d", s.CurrentIndex+1, len(s.ImageFiles))
}

// LoadCurrentImage decodes the current image and prefetches its neighbours.
func (s *State) LoadCurrentImage() (*image.Source, error) {
	s.mu.RLock()
	dir, i, files := s.ImageFolder, s.CurrentIndex, s.ImageFiles
	s.mu.RUnlock()
	if i < 0 || i >= len(files) {
		return nil, ErrNoImage
	}

	path := filepath.Join(dir, files[i])
	if s.images == nil {
		return image.Load(path)
	}
	src, err := s.images.Load(path)
	if err != nil {
		return nil, err
	}
	for _, j := range []int{i + 1, i - 1} {
		if j >= 0 && j < len(files) {
			s.images.Prefetch(filepath.Join(dir, files[j]))
		}
	}
	return src, nil
}

// ForgetImage drops a cached decode of name, e.g. after it changed on disk.
func (s *State) ForgetImage(name string) {
	if s.images == nil {
		return
	}
	s.mu.RLock()
	dir := s.ImageFolder
	s.mu.RUnlock()
	s.images.Forget(filepath.Join(dir, name))
}

func (s *State) emitSelected() {
	name := s.CurrentImageName()
	s.Emit(EventImageSelected, name)
}

// AnnotationsFor returns a copy of the boxes of image name.
func (s *State) AnnotationsFor(name string) []annotation.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return annotation.Clone(s.annotations[name])
}

// CurrentAnnotations returns a copy of the boxes of the current image.
func (s *State) CurrentAnnotations() []annotation.Annotation {
	return s.AnnotationsFor(s.CurrentImageName())
}

// AddAnnotation appends a box to the current image.
func (s *State) AddAnnotation(box annotation.BBox, class int) error {
	a := annotation.Annotation{Class: class, BBox: box}
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	name := s.currentNameLocked()
	if name == "" {
		s.mu.Unlock()
		return ErrNoImage
	}
	s.annotations[name] = append(s.annotations[name], a)
	s.mu.Unlock()

	s.changed(name)
	return nil
}

// UpdateAnnotation replaces the geometry of box index on the current image.
// An update that does not move the box is ignored and leaves the project
// unmodified.
func (s *State) UpdateAnnotation(index int, box annotation.BBox) error {
	if err := box.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	name := s.currentNameLocked()
	anns := s.annotations[name]
	if name == "" || index < 0 || index >= len(anns) {
		s.mu.Unlock()
		return fmt.Errorf("annotation index %d out of range [0,%d)", index, len(anns))
	}
	if anns[index].BBox.ApproxEqual(box, annotation.Tolerance) {
		// click-release without movement
		s.mu.Unlock()
		return nil
	}
	anns[index].BBox = box
	s.mu.Unlock()

	s.changed(name)
	return nil
}

// DeleteAnnotations removes the boxes at indices from the current image.
// Out-of-range and repeated indices are ignored. It returns the number of
// boxes removed.
func (s *State) DeleteAnnotations(indices []int) int {
	s.mu.Lock()
	name := s.currentNameLocked()
	anns := s.annotations[name]

	idx := slices.Clone(indices)
	slices.Sort(idx)
	idx = slices.Compact(idx)
	removed := 0
	for k := len(idx) - 1; k >= 0; k-- {
		i := idx[k]
		if i < 0 || i >= len(anns) {
			continue
		}
		anns = slices.Delete(anns, i, i+1)
		removed++
	}
	if len(anns) == 0 {
		delete(s.annotations, name)
	} else {
		s.annotations[name] = anns
	}
	s.mu.Unlock()

	if removed > 0 {
		s.changed(name)
	}
	return removed
}

// AnnotatedCount returns the number of images with at least one box.
func (s *State) AnnotatedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, anns := range s.annotations {
		if len(anns) > 0 {
			n++
		}
	}
	return n
}

func (s *State) changed(name string) {
	s.Emit(EventAnnotationsChanged, name)
	s.SetModified(true)
}

// ClassNames returns a copy of the class list.
func (s *State) ClassNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.Classes)
}

// ClassName returns the name of class id, or "class N" for ids without one.
func (s *State) ClassName(id int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= 0 && id < len(s.Classes) {
		return s.Classes[id]
	}
	return fmt.Sprintf("class %d", id)
}

// AddClass appends a class name.
func (s *State) AddClass(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("class name is empty")
	}

	s.mu.Lock()
	s.Classes = append(s.Classes, name)
	classes := slices.Clone(s.Classes)
	s.mu.Unlock()

	s.Emit(EventClassesChanged, classes)
	s.SetModified(true)
	return nil
}

// RemoveClass deletes class i. The last class cannot be removed. Existing
// boxes keep their ids.
func (s *State) RemoveClass(i int) error {
	s.mu.Lock()
	if i < 0 || i >= len(s.Classes) {
		n := len(s.Classes)
		s.mu.Unlock()
		return fmt.Errorf("class index %d out of range [0,%d)", i, n)
	}
	if len(s.Classes) <= 1 {
		s.mu.Unlock()
		return ErrLastClass
	}
	s.Classes = slices.Delete(s.Classes, i, i+1)
	classes := slices.Clone(s.Classes)
	clampedClass := -1
	if s.CurrentClass >= len(s.Classes) {
		s.CurrentClass = len(s.Classes) - 1
		clampedClass = s.CurrentClass
	}
	s.mu.Unlock()

	s.Emit(EventClassesChanged, classes)
	if clampedClass >= 0 {
		s.Emit(EventClassSelected, clampedClass)
	}
	s.SetModified(true)
	return nil
}

// CurrentClassID returns the class used for new boxes.
func (s *State) CurrentClassID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentClass
}

// SetCurrentClass selects the class used for new boxes.
func (s *State) SetCurrentClass(id int) error {
	s.mu.Lock()
	if id < 0 || id >= len(s.Classes) {
		n := len(s.Classes)
		s.mu.Unlock()
		return fmt.Errorf("class id %d out of range [0,%d)", id, n)
	}
	s.CurrentClass = id
	s.mu.Unlock()

	s.Emit(EventClassSelected, id)
	return nil
}

// LoadProject loads a project from the specified path. If its image folder
// is missing the classes and annotations are still loaded and the returned
// error wraps ErrFolderNotFound.
func (s *State) LoadProject(path string) error {
	proj, err := project.Load(path)
	if err != nil {
		return err
	}
	if proj.Dropped > 0 {
		log.Printf("Project %s: dropped %d malformed boxes", path, proj.Dropped)
	}

	folder := proj.ImageFolderPath(path)
	var files []string
	var folderErr error
	if folder == "" {
		folderErr = ErrFolderNotFound
	} else if info, err := os.Stat(folder); err != nil || !info.IsDir() {
		folderErr = fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
	} else if files, err = image.ListImages(folder); err != nil {
		folderErr = err
	}

	if folderErr == nil {
		if missing := MissingImages(proj, files); len(missing) > 0 {
			log.Printf("Project %s: %d annotated images not in %s: %v", path, len(missing), folder, missing)
		}
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.Modified = false
	s.ImageFolder = folder
	s.ImageFiles = files
	s.Classes = slices.Clone(proj.Classes)
	if len(s.Classes) == 0 {
		s.Classes = slices.Clone(s.defaultClasses)
	}
	s.CurrentClass = 0
	s.annotations = proj.Annotations
	s.CurrentIndex = -1
	if len(files) > 0 {
		s.CurrentIndex = min(proj.CurrentImageIndex, len(files)-1)
	}
	classes := slices.Clone(s.Classes)
	s.mu.Unlock()

	if s.images != nil {
		s.images.Purge()
	}
	s.Emit(EventClassesChanged, classes)
	s.Emit(EventClassSelected, 0)
	s.Emit(EventImageListChanged, slices.Clone(files))
	s.emitSelected()
	s.Emit(EventProjectLoaded, path)
	s.Emit(EventModified, false)
	return folderErr
}

// MissingImages returns the annotated images of proj that are not among
// files. Their boxes are kept so they come back if the file reappears.
func MissingImages(proj *project.File, files []string) []string {
	var missing []string
	for _, name := range proj.AnnotatedImages() {
		if !slices.Contains(files, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// SaveProject saves the project to the specified path, or to the path it
// was loaded from or last saved to when path is empty.
func (s *State) SaveProject(path string) error {
	s.mu.RLock()
	if path == "" {
		path = s.ProjectPath
	}
	if s.ImageFolder == "" {
		s.mu.RUnlock()
		return ErrNoFolder
	}
	proj := project.New(s.ImageFolder, s.Classes)
	proj.CurrentImageIndex = max(s.CurrentIndex, 0)
	for name, anns := range s.annotations {
		proj.Annotations[name] = annotation.Clone(anns)
	}
	s.mu.RUnlock()

	if path == "" {
		return ErrNoProjectPath
	}
	if err := proj.Save(path); err != nil {
		return err
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventProjectSaved, path)
	s.Emit(EventModified, false)
	return nil
}

// ExportOptions are the user-chosen parts of a dataset export.
type ExportOptions struct {
	OutputDir    string
	TrainPercent float64
	Seed         uint64
	Progress     func(done, total int)
}

// Export writes the annotated images as a YOLO dataset.
func (s *State) Export(ctx context.Context, opts ExportOptions) (*dataset.Result, error) {
	s.mu.RLock()
	if s.ImageFolder == "" {
		s.mu.RUnlock()
		return nil, ErrNoFolder
	}
	anns := make(map[string][]annotation.Annotation, len(s.annotations))
	for name, a := range s.annotations {
		anns[name] = annotation.Clone(a)
	}
	dopts := dataset.Options{
		ImageFolder:  s.ImageFolder,
		OutputDir:    opts.OutputDir,
		Classes:      slices.Clone(s.Classes),
		Annotations:  anns,
		TrainPercent: opts.TrainPercent,
		Seed:         opts.Seed,
		Progress:     opts.Progress,
	}
	s.mu.RUnlock()

	res, err := dataset.Export(ctx, dopts)
	if err != nil {
		return res, fmt.Errorf("export failed: %w", err)
	}
	log.Printf("Exported dataset to %s (%s)", res.Dir, res.Summary())
	s.Emit(EventExported, res)
	return res, nil
}
