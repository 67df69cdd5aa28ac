package panels

import (
	"fmt"
	"sync"

	"labelsense/internal/app"
	"labelsense/pkg/colorutil"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// ClassesPanel lists the class names. Selecting a row makes it the class
// for new boxes.
type ClassesPanel struct {
	state     *app.State
	container fyne.CanvasObject
	window    fyne.Window

	list      *widget.List
	nameEntry *widget.Entry

	mu      sync.RWMutex
	classes []string
}

// NewClassesPanel creates a new classes panel.
func NewClassesPanel(state *app.State) *ClassesPanel {
	cp := &ClassesPanel{
		state:   state,
		classes: state.ClassNames(),
	}

	cp.list = widget.NewList(
		func() int {
			cp.mu.RLock()
			defer cp.mu.RUnlock()
			return len(cp.classes)
		},
		func() fyne.CanvasObject {
			swatch := fynecanvas.NewRectangle(colorutil.ClassColor(0))
			swatch.SetMinSize(fyne.NewSize(14, 14))
			return container.NewHBox(container.NewCenter(swatch), widget.NewLabel("00: Class Name"))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			cp.mu.RLock()
			defer cp.mu.RUnlock()
			if id >= len(cp.classes) {
				return
			}
			row := obj.(*fyne.Container)
			swatch := row.Objects[0].(*fyne.Container).Objects[0].(*fynecanvas.Rectangle)
			swatch.FillColor = colorutil.ClassColor(id)
			swatch.Refresh()
			row.Objects[1].(*widget.Label).SetText(fmt.Sprintf("%d: %s", id, cp.classes[id]))
		},
	)
	cp.list.OnSelected = func(id widget.ListItemID) {
		if id != state.CurrentClassID() {
			state.SetCurrentClass(id)
		}
	}

	cp.nameEntry = widget.NewEntry()
	cp.nameEntry.SetPlaceHolder("New class name")
	cp.nameEntry.OnSubmitted = func(string) { cp.addClass() }

	addBtn := widget.NewButton("Add", cp.addClass)
	removeBtn := widget.NewButton("Remove", cp.removeSelected)

	cp.container = container.NewBorder(
		nil,
		container.NewVBox(
			container.NewBorder(nil, nil, nil, addBtn, cp.nameEntry),
			removeBtn,
		),
		nil, nil,
		cp.list,
	)

	state.On(app.EventClassesChanged, func(data interface{}) {
		classes, _ := data.([]string)
		cp.mu.Lock()
		cp.classes = classes
		cp.mu.Unlock()
		cp.list.Refresh()
	})
	state.On(app.EventClassSelected, func(data interface{}) {
		if id, ok := data.(int); ok {
			cp.list.Select(id)
		}
	})
	cp.list.Select(state.CurrentClassID())

	return cp
}

// Container returns the panel container.
func (cp *ClassesPanel) Container() fyne.CanvasObject {
	return cp.container
}

// SetWindow sets the parent window for dialogs.
func (cp *ClassesPanel) SetWindow(w fyne.Window) {
	cp.window = w
}

func (cp *ClassesPanel) addClass() {
	if err := cp.state.AddClass(cp.nameEntry.Text); err != nil {
		cp.showError(err)
		return
	}
	cp.nameEntry.SetText("")
}

// removeSelected removes the current class after confirmation. Boxes that
// use it keep their class id.
func (cp *ClassesPanel) removeSelected() {
	id := cp.state.CurrentClassID()
	name := cp.state.ClassName(id)
	remove := func(ok bool) {
		if !ok {
			return
		}
		if err := cp.state.RemoveClass(id); err != nil {
			cp.showError(err)
		}
	}
	if cp.window == nil {
		remove(true)
		return
	}
	dialog.ShowConfirm("Remove Class",
		fmt.Sprintf("Remove class %d (%s)? Existing boxes keep their class id.", id, name),
		remove, cp.window)
}

func (cp *ClassesPanel) showError(err error) {
	if cp.window != nil {
		dialog.ShowError(err, cp.window)
	}
}
