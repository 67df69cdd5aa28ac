// Package panels provides UI panels for the application.
package panels

import (
	"log"
	"path/filepath"
	"strings"

	"labelsense/internal/app"
	lcanvas "labelsense/internal/canvas"
	"labelsense/ui/canvas"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// modeLabels are the mode choices in display order.
var modeLabels = []string{"Draw", "Edit", "Pan"}

// SidePanel is the left-hand panel: folder and mode at the top, then tabs
// for images, classes and the boxes of the current image.
type SidePanel struct {
	state     *app.State
	canvas    *canvas.AnnotationCanvas
	container fyne.CanvasObject

	folderLabel *widget.Label
	modeSelect  *widget.RadioGroup
	syncingMode bool

	imagesPanel  *ImagesPanel
	classesPanel *ClassesPanel
	boxesPanel   *BoxesPanel

	onOpenFolder func()
}

// NewSidePanel creates a new side panel.
func NewSidePanel(state *app.State, cvs *canvas.AnnotationCanvas) *SidePanel {
	sp := &SidePanel{
		state:  state,
		canvas: cvs,
	}

	sp.folderLabel = widget.NewLabel("No folder open")
	sp.folderLabel.Truncation = fyne.TextTruncateEllipsis
	openBtn := widget.NewButton("Open Folder...", func() {
		if sp.onOpenFolder != nil {
			sp.onOpenFolder()
		}
	})

	sp.modeSelect = widget.NewRadioGroup(modeLabels, sp.onModeChanged)
	sp.modeSelect.Horizontal = true
	sp.modeSelect.Required = true
	sp.modeSelect.SetSelected(modeLabel(cvs.Mode()))

	sp.imagesPanel = NewImagesPanel(state)
	sp.classesPanel = NewClassesPanel(state)
	sp.boxesPanel = NewBoxesPanel(state, cvs)

	top := widget.NewCard("", "", container.NewVBox(
		container.NewBorder(nil, nil, nil, openBtn, sp.folderLabel),
		sp.modeSelect,
	))

	tabs := container.NewAppTabs(
		container.NewTabItem("Images", sp.imagesPanel.Container()),
		container.NewTabItem("Classes", sp.classesPanel.Container()),
		container.NewTabItem("Boxes", sp.boxesPanel.Container()),
	)

	sp.container = container.NewBorder(top, nil, nil, nil, tabs)

	state.On(app.EventFolderOpened, func(data interface{}) {
		if dir, ok := data.(string); ok {
			sp.setFolder(dir)
		}
	})
	state.On(app.EventProjectLoaded, func(_ interface{}) {
		sp.setFolder(state.Folder())
	})

	return sp
}

// Container returns the panel container.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.container
}

// SetWindow sets the parent window for dialogs.
func (sp *SidePanel) SetWindow(w fyne.Window) {
	sp.classesPanel.SetWindow(w)
	sp.boxesPanel.SetWindow(w)
}

// OnOpenFolder sets the action of the Open Folder button.
func (sp *SidePanel) OnOpenFolder(callback func()) {
	sp.onOpenFolder = callback
}

// Boxes returns the boxes panel.
func (sp *SidePanel) Boxes() *BoxesPanel {
	return sp.boxesPanel
}

// SetMode switches the canvas mode and updates the selector. It does
// nothing while a gesture is in progress.
func (sp *SidePanel) SetMode(m lcanvas.Mode) {
	sp.modeSelect.SetSelected(modeLabel(m))
}

func (sp *SidePanel) setFolder(dir string) {
	if dir == "" {
		sp.folderLabel.SetText("No folder open")
		return
	}
	sp.folderLabel.SetText(filepath.Base(dir))
}

func (sp *SidePanel) onModeChanged(selected string) {
	if sp.syncingMode {
		return
	}
	m, err := lcanvas.ParseMode(strings.ToLower(selected))
	if err != nil {
		return
	}
	if err := sp.canvas.SetMode(m); err != nil {
		log.Printf("Mode change to %s refused: %v", m, err)
		sp.syncingMode = true
		sp.modeSelect.SetSelected(modeLabel(sp.canvas.Mode()))
		sp.syncingMode = false
	}
}

func modeLabel(m lcanvas.Mode) string {
	switch m {
	case lcanvas.ModeEdit:
		return "Edit"
	case lcanvas.ModePan:
		return "Pan"
	default:
		return "Draw"
	}
}
