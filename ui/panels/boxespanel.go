package panels

import (
	"fmt"
	"slices"
	"sync"

	"labelsense/internal/annotation"
	"labelsense/internal/app"
	"labelsense/pkg/colorutil"
	"labelsense/ui/canvas"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// BoxesPanel lists the boxes of the current image. Rows are checked for
// deletion; the row of the box selected on the canvas is highlighted.
type BoxesPanel struct {
	state     *app.State
	canvas    *canvas.AnnotationCanvas
	container fyne.CanvasObject
	window    fyne.Window

	list    *widget.List
	summary *widget.Label

	mu      sync.RWMutex
	boxes   []annotation.Annotation
	checked map[int]bool
}

// NewBoxesPanel creates a new boxes panel.
func NewBoxesPanel(state *app.State, cvs *canvas.AnnotationCanvas) *BoxesPanel {
	bp := &BoxesPanel{
		state:   state,
		canvas:  cvs,
		checked: make(map[int]bool),
	}

	bp.summary = widget.NewLabel("No boxes")
	bp.list = widget.NewList(
		func() int {
			bp.mu.RLock()
			defer bp.mu.RUnlock()
			return len(bp.boxes)
		},
		func() fyne.CanvasObject {
			swatch := fynecanvas.NewRectangle(colorutil.ClassColor(0))
			swatch.SetMinSize(fyne.NewSize(14, 14))
			return container.NewHBox(
				widget.NewCheck("", nil),
				container.NewCenter(swatch),
				widget.NewLabel("00 Class Name (0.000, 0.000, 0.000, 0.000)"),
			)
		},
		bp.updateRow,
	)

	deleteBtn := widget.NewButton("Delete Checked", bp.deleteChecked)
	allBtn := widget.NewButton("Check All", func() { bp.checkAll(true) })
	noneBtn := widget.NewButton("Check None", func() { bp.checkAll(false) })

	bp.container = container.NewBorder(
		bp.summary,
		container.NewVBox(container.NewGridWithColumns(2, allBtn, noneBtn), deleteBtn),
		nil, nil,
		bp.list,
	)

	reload := func(_ interface{}) { bp.reload() }
	state.On(app.EventImageSelected, reload)
	state.On(app.EventAnnotationsChanged, func(data interface{}) {
		if name, _ := data.(string); name == state.CurrentImageName() {
			bp.reload()
		}
	})
	state.On(app.EventClassesChanged, func(_ interface{}) { bp.list.Refresh() })

	return bp
}

// Container returns the panel container.
func (bp *BoxesPanel) Container() fyne.CanvasObject {
	return bp.container
}

// SetWindow sets the parent window for dialogs.
func (bp *BoxesPanel) SetWindow(w fyne.Window) {
	bp.window = w
}

// Highlight marks the row of box i, or clears the highlight for -1.
func (bp *BoxesPanel) Highlight(i int) {
	if i < 0 {
		bp.list.UnselectAll()
		return
	}
	bp.list.Select(i)
	bp.list.ScrollTo(i)
}

// Checked returns the checked row indices in ascending order.
func (bp *BoxesPanel) Checked() []int {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	out := make([]int, 0, len(bp.checked))
	for i, on := range bp.checked {
		if on {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return out
}

// DeleteSelected deletes the checked boxes, or the box selected on the
// canvas when none are checked.
func (bp *BoxesPanel) DeleteSelected() {
	indices := bp.Checked()
	if len(indices) == 0 {
		if sel := bp.canvas.Selected(); sel >= 0 {
			indices = []int{sel}
		}
	}
	if len(indices) == 0 {
		return
	}
	bp.state.DeleteAnnotations(indices)
}

func (bp *BoxesPanel) deleteChecked() {
	indices := bp.Checked()
	if len(indices) == 0 {
		return
	}
	remove := func(ok bool) {
		if ok {
			bp.state.DeleteAnnotations(indices)
		}
	}
	if bp.window == nil {
		remove(true)
		return
	}
	dialog.ShowConfirm("Delete Boxes",
		fmt.Sprintf("Delete %d box(es) from %s?", len(indices), bp.state.CurrentImageName()),
		remove, bp.window)
}

func (bp *BoxesPanel) checkAll(on bool) {
	bp.mu.Lock()
	clear(bp.checked)
	if on {
		for i := range bp.boxes {
			bp.checked[i] = true
		}
	}
	bp.mu.Unlock()
	bp.list.Refresh()
}

// reload takes a fresh copy of the current image's boxes. Checks are
// dropped because indices may have shifted.
func (bp *BoxesPanel) reload() {
	boxes := bp.state.CurrentAnnotations()
	bp.mu.Lock()
	bp.boxes = boxes
	clear(bp.checked)
	bp.mu.Unlock()

	bp.summary.SetText(boxSummary(len(boxes)))
	bp.list.UnselectAll()
	bp.list.Refresh()
}

func (bp *BoxesPanel) updateRow(id widget.ListItemID, obj fyne.CanvasObject) {
	bp.mu.RLock()
	if id >= len(bp.boxes) {
		bp.mu.RUnlock()
		return
	}
	a := bp.boxes[id]
	on := bp.checked[id]
	bp.mu.RUnlock()

	row := obj.(*fyne.Container)
	check := row.Objects[0].(*widget.Check)
	check.OnChanged = nil
	check.SetChecked(on)
	check.OnChanged = func(v bool) {
		bp.mu.Lock()
		bp.checked[id] = v
		bp.mu.Unlock()
	}

	swatch := row.Objects[1].(*fyne.Container).Objects[0].(*fynecanvas.Rectangle)
	swatch.FillColor = colorutil.ClassColor(a.Class)
	swatch.Refresh()

	row.Objects[2].(*widget.Label).SetText(boxRowText(id, bp.state.ClassName(a.Class), a.BBox))
}

func boxRowText(i int, className string, b annotation.BBox) string {
	return fmt.Sprintf("%d %s (%.3f, %.3f, %.3f, %.3f)", i, className, b.CX, b.CY, b.W, b.H)
}

func boxSummary(n int) string {
	switch n {
	case 0:
		return "No boxes"
	case 1:
		return "1 box"
	default:
		return fmt.Sprintf("%d boxes", n)
	}
}
