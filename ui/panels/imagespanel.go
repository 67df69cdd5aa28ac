package panels

import (
	"fmt"
	"sync"

	"labelsense/internal/app"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// ImagesPanel lists the images of the open folder with prev/next buttons
// and a position counter.
type ImagesPanel struct {
	state     *app.State
	container fyne.CanvasObject

	list    *widget.List
	counter *widget.Label

	mu    sync.RWMutex
	files []string // snapshot of state.ImageFiles
}

// NewImagesPanel creates a new images panel.
func NewImagesPanel(state *app.State) *ImagesPanel {
	ip := &ImagesPanel{state: state}

	ip.counter = widget.NewLabel("0/0")
	prevBtn := widget.NewButton("< Prev", func() { state.PrevImage() })
	nextBtn := widget.NewButton("Next >", func() { state.NextImage() })

	ip.list = widget.NewList(
		func() int {
			ip.mu.RLock()
			defer ip.mu.RUnlock()
			return len(ip.files)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("image_000000.jpg (00)")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			ip.mu.RLock()
			defer ip.mu.RUnlock()
			if id >= len(ip.files) {
				return
			}
			obj.(*widget.Label).SetText(imageRowText(ip.files[id], len(state.AnnotationsFor(ip.files[id]))))
		},
	)
	ip.list.OnSelected = func(id widget.ListItemID) {
		if id != state.CurrentImageIndex() {
			state.SelectImage(id)
		}
	}

	ip.container = container.NewBorder(
		container.NewBorder(nil, nil, prevBtn, nextBtn, container.NewCenter(ip.counter)),
		nil, nil, nil,
		ip.list,
	)

	state.On(app.EventImageListChanged, func(data interface{}) {
		files, _ := data.([]string)
		ip.mu.Lock()
		ip.files = files
		ip.mu.Unlock()
		ip.list.Refresh()
		ip.syncSelection()
	})
	state.On(app.EventImageSelected, func(_ interface{}) {
		ip.syncSelection()
	})
	state.On(app.EventAnnotationsChanged, func(_ interface{}) {
		ip.list.Refresh()
	})

	return ip
}

// Container returns the panel container.
func (ip *ImagesPanel) Container() fyne.CanvasObject {
	return ip.container
}

func (ip *ImagesPanel) syncSelection() {
	ip.counter.SetText(ip.state.ImageCounter())
	i := ip.state.CurrentImageIndex()
	if i < 0 {
		ip.list.UnselectAll()
		return
	}
	ip.list.Select(i)
	ip.list.ScrollTo(i)
}

// imageRowText labels an image row, with its box count when it has any.
func imageRowText(name string, boxes int) string {
	if boxes == 0 {
		return name
	}
	return fmt.Sprintf("%s (%d)", name, boxes)
}
