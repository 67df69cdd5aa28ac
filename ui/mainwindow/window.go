// Package mainwindow provides the main application window.
package mainwindow

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"labelsense/internal/annotation"
	"labelsense/internal/app"
	lcanvas "labelsense/internal/canvas"
	"labelsense/internal/config"
	"labelsense/internal/dataset"
	"labelsense/internal/version"
	"labelsense/ui/canvas"
	"labelsense/ui/dialogs"
	"labelsense/ui/panels"
	"labelsense/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const (
	appTitle       = "LabelSense"
	projectExt     = ".json"
	defaultProject = "project.json"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	state *app.State
	cfg   *config.Config
	prefs *prefs.Prefs

	canvas    *canvas.AnnotationCanvas
	sidePanel *panels.SidePanel
	statusBar *widget.Label
	zoomLabel *widget.Label

	watcher *app.FolderWatcher

	// Menu items that need state tracking
	crosshairItem *fyne.MenuItem
	rulersItem    *fyne.MenuItem
	darkItem      *fyne.MenuItem
	mainMenu      *fyne.MainMenu
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, cfg *config.Config, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		cfg:    cfg,
		prefs:  p,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupShortcuts()
	mw.setupEventHandlers()

	win.Resize(fyne.NewSize(
		float32(p.FloatWithFallback(prefs.KeyWindowWidth, 1280)),
		float32(p.FloatWithFallback(prefs.KeyWindowHeight, 800)),
	))
	win.SetCloseIntercept(mw.onClose)

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewAnnotationCanvas(mw.cfg.CanvasOptions())
	mw.canvas.SetShowCrosshair(mw.prefs.Bool(prefs.KeyCrosshair, mw.cfg.Canvas.Crosshair))
	mw.canvas.SetShowRulers(mw.prefs.Bool(prefs.KeyShowRulers, false))
	mw.canvas.SetCurrentClass(mw.state.CurrentClassID())

	mw.canvas.OnBoxCreated(mw.onBoxCreated)
	mw.canvas.OnBoxUpdated(mw.onBoxUpdated)
	mw.canvas.OnViewChange(func(v lcanvas.Viewport) {
		mw.zoomLabel.SetText(zoomText(v.Zoom))
	})

	mw.sidePanel = panels.NewSidePanel(mw.state, mw.canvas)
	mw.sidePanel.SetWindow(mw.Window)
	mw.sidePanel.OnOpenFolder(mw.onOpenFolder)
	mw.canvas.OnSelectionChanged(mw.sidePanel.Boxes().Highlight)

	mw.statusBar = widget.NewLabel("Open a folder to start")
	mw.zoomLabel = widget.NewLabel(zoomText(mw.canvas.Viewport().Zoom))

	toolbar := mw.createToolbar()

	canvasArea := container.NewBorder(
		toolbar,   // top
		nil,       // bottom
		nil,       // left
		nil,       // right
		mw.canvas, // center
	)

	split := container.NewHSplit(mw.sidePanel.Container(), canvasArea)
	split.SetOffset(0.25)

	content := container.NewBorder(
		nil,
		container.NewPadded(container.NewBorder(nil, nil, nil, mw.zoomLabel, mw.statusBar)),
		nil,
		nil,
		split,
	)

	mw.SetContent(content)
}

// createToolbar creates the toolbar with zoom controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	return container.NewHBox(
		widget.NewLabel("Zoom:"),
		widget.NewButton("-", mw.canvas.ZoomOut),
		widget.NewButton("+", mw.canvas.ZoomIn),
		widget.NewButton("Fit", mw.canvas.FitToView),
		widget.NewSeparator(),
		widget.NewButton("< Prev", func() { mw.state.PrevImage() }),
		widget.NewButton("Next >", func() { mw.state.NextImage() }),
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Folder...", mw.onOpenFolder),
		fyne.NewMenuItem("Load Project...", mw.onLoadProject),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Project", mw.onSaveProject),
		fyne.NewMenuItem("Save Project As...", mw.onSaveProjectAs),
	)

	exportMenu := fyne.NewMenu("Export",
		fyne.NewMenuItem("YOLO Dataset...", mw.onExport),
	)

	mw.crosshairItem = fyne.NewMenuItem("Crosshair", mw.onToggleCrosshair)
	mw.crosshairItem.Checked = mw.canvas.ShowCrosshair()
	mw.rulersItem = fyne.NewMenuItem("Rulers", mw.onToggleRulers)
	mw.rulersItem.Checked = mw.canvas.ShowRulers()
	mw.darkItem = fyne.NewMenuItem("Dark Theme", mw.onToggleDark)
	mw.darkItem.Checked = mw.prefs.Bool(prefs.KeyDarkMode, true)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.canvas.ZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.canvas.ZoomOut),
		fyne.NewMenuItem("Fit to Window", mw.canvas.FitToView),
		fyne.NewMenuItemSeparator(),
		mw.crosshairItem,
		mw.rulersItem,
		mw.darkItem,
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("Shortcuts", mw.onShortcuts),
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.mainMenu = fyne.NewMainMenu(fileMenu, exportMenu, viewMenu, helpMenu)
	mw.SetMainMenu(mw.mainMenu)
}

// setupShortcuts binds keyboard shortcuts on the window canvas.
func (mw *MainWindow) setupShortcuts() {
	c := mw.Canvas()
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onSaveProject() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onOpenFolder() })

	c.SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyEscape:
			mw.canvas.Cancel()
		case fyne.KeyDelete, fyne.KeyBackspace:
			mw.sidePanel.Boxes().DeleteSelected()
		case fyne.KeyRight, fyne.KeyD:
			mw.state.NextImage()
		case fyne.KeyLeft, fyne.KeyA:
			mw.state.PrevImage()
		case fyne.KeyW:
			mw.sidePanel.SetMode(lcanvas.ModeDraw)
		case fyne.KeyE:
			mw.sidePanel.SetMode(lcanvas.ModeEdit)
		case fyne.KeySpace:
			mw.sidePanel.SetMode(lcanvas.ModePan)
		case fyne.KeyF:
			mw.canvas.FitToView()
		}
	})
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventImageSelected, func(_ interface{}) {
		mw.showCurrentImage()
	})

	mw.state.On(app.EventAnnotationsChanged, func(data interface{}) {
		if name, _ := data.(string); name == mw.state.CurrentImageName() {
			mw.canvas.SetAnnotations(mw.state.CurrentAnnotations())
			mw.updateStatus()
		}
	})

	mw.state.On(app.EventClassSelected, func(data interface{}) {
		if id, ok := data.(int); ok {
			mw.canvas.SetCurrentClass(id)
			mw.updateStatus()
		}
	})

	mw.state.On(app.EventFolderOpened, func(data interface{}) {
		if dir, ok := data.(string); ok {
			mw.prefs.SetString(prefs.KeyLastFolder, dir)
			mw.watchFolder(dir)
		}
		mw.updateTitle()
	})

	mw.state.On(app.EventProjectLoaded, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.prefs.SetString(prefs.KeyLastProject, path)
		}
		if dir := mw.state.Folder(); dir != "" {
			mw.watchFolder(dir)
		}
		mw.updateTitle()
	})

	mw.state.On(app.EventProjectSaved, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.prefs.SetString(prefs.KeyLastProject, path)
			mw.statusBar.SetText("Saved " + filepath.Base(path))
		}
	})

	mw.state.On(app.EventModified, func(_ interface{}) {
		mw.updateTitle()
	})
}

// RestoreSession reopens the last project, or failing that the last folder.
func (mw *MainWindow) RestoreSession() {
	if path := mw.prefs.String(prefs.KeyLastProject); path != "" {
		if err := mw.LoadProject(path); err == nil {
			return
		}
	}
	if dir := mw.prefs.String(prefs.KeyLastFolder); dir != "" {
		if err := mw.state.OpenFolder(dir); err != nil {
			log.Printf("Failed to reopen folder %s: %v", dir, err)
		}
	}
}

// LoadProject loads a project file. A missing image folder is reported but
// the classes and boxes stay loaded.
func (mw *MainWindow) LoadProject(path string) error {
	err := mw.state.LoadProject(path)
	switch {
	case err == nil:
		log.Printf("Loaded project %s", path)
	case errors.Is(err, app.ErrFolderNotFound):
		log.Printf("Project %s: %v", path, err)
		dialog.ShowError(fmt.Errorf("project loaded without images: %w", err), mw.Window)
	default:
		log.Printf("Failed to load project %s: %v", path, err)
		dialog.ShowError(err, mw.Window)
	}
	return err
}

// showCurrentImage loads the current image into the canvas.
func (mw *MainWindow) showCurrentImage() {
	name := mw.state.CurrentImageName()
	if name == "" {
		mw.canvas.SetImage(nil, nil)
		mw.updateStatus()
		return
	}

	src, err := mw.state.LoadCurrentImage()
	if err != nil {
		log.Printf("Failed to load %s: %v", name, err)
		// The state already points at the broken file. Keeping the previous
		// picture would let new boxes land on the wrong image, so the canvas
		// is emptied instead; the engine itself is untouched by the failed
		// decode.
		mw.canvas.SetImage(nil, nil)
		dialog.ShowError(err, mw.Window)
		mw.updateStatus()
		return
	}
	if err := mw.canvas.SetImage(src.Image, mw.state.CurrentAnnotations()); err != nil {
		dialog.ShowError(err, mw.Window)
	}
	mw.updateStatus()
}

func (mw *MainWindow) onBoxCreated(bbox annotation.BBox, classID int) {
	if err := mw.state.AddAnnotation(bbox, classID); err != nil {
		log.Printf("Rejected new box %v: %v", bbox, err)
		mw.canvas.SetAnnotations(mw.state.CurrentAnnotations())
	}
}

func (mw *MainWindow) onBoxUpdated(index int, bbox annotation.BBox) {
	if err := mw.state.UpdateAnnotation(index, bbox); err != nil {
		log.Printf("Rejected box update %d %v: %v", index, bbox, err)
		mw.canvas.SetAnnotations(mw.state.CurrentAnnotations())
	}
}

// watchFolder replaces the folder watcher so the image list follows
// changes on disk.
func (mw *MainWindow) watchFolder(dir string) {
	if mw.watcher != nil {
		if mw.watcher.Dir() == dir {
			return
		}
		mw.watcher.Stop()
		mw.watcher = nil
	}

	w, err := app.NewFolderWatcher(dir, app.DefaultSettleDelay)
	if err != nil {
		log.Printf("Folder watcher disabled: %v", err)
		return
	}
	w.OnChange(func(names []string) {
		current := mw.state.CurrentImageName()
		reload := false
		for _, n := range names {
			mw.state.ForgetImage(n)
			if n == current {
				reload = true
			}
		}
		if err := mw.state.RefreshImages(); err != nil {
			log.Printf("Refreshing %s: %v", dir, err)
			return
		}
		if reload && mw.state.CurrentImageName() == current {
			mw.showCurrentImage()
		}
	})
	w.Start()
	mw.watcher = w
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus() {
	name := mw.state.CurrentImageName()
	if name == "" {
		mw.statusBar.SetText("No image")
		return
	}
	mw.statusBar.SetText(statusText(
		name,
		mw.state.ImageCounter(),
		len(mw.state.CurrentAnnotations()),
		mw.state.ClassName(mw.state.CurrentClassID()),
	))
}

func (mw *MainWindow) updateTitle() {
	mw.SetTitle(windowTitle(mw.state.ProjectFile(), mw.state.Folder(), mw.state.IsModified()))
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastFolder)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// Menu action handlers

func (mw *MainWindow) onOpenFolder() {
	fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil || uri == nil {
			return
		}
		mw.confirmDiscard(func() {
			if err := mw.state.OpenFolder(uri.Path()); err != nil {
				dialog.ShowError(err, mw.Window)
			}
		})
	}, mw.Window)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onLoadProject() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.confirmDiscard(func() { mw.LoadProject(path) })
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{projectExt}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onSaveProject() {
	if mw.state.ProjectFile() == "" {
		mw.onSaveProjectAs()
		return
	}
	if err := mw.state.SaveProject(""); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onSaveProjectAs() {
	if mw.state.Folder() == "" {
		dialog.ShowError(app.ErrNoFolder, mw.Window)
		return
	}
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != projectExt {
			path += projectExt
		}
		if err := mw.state.SaveProject(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName(defaultProject)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onExport() {
	if mw.state.Folder() == "" {
		dialog.ShowError(app.ErrNoFolder, mw.Window)
		return
	}
	dialogs.NewExportDialog(mw.state, mw.Window, mw.cfg.Export,
		mw.prefs.String(prefs.KeyLastExportDir),
		func(res *dataset.Result) {
			mw.prefs.SetString(prefs.KeyLastExportDir, filepath.Dir(res.Dir))
			mw.statusBar.SetText("Exported " + res.Summary())
		}).Show()
}

// confirmDiscard runs next, first asking when there are unsaved changes.
func (mw *MainWindow) confirmDiscard(next func()) {
	if !mw.state.IsModified() {
		next()
		return
	}
	dialog.ShowConfirm("Unsaved Changes",
		"The current annotations have not been saved. Continue anyway?",
		func(ok bool) {
			if ok {
				next()
			}
		}, mw.Window)
}

func (mw *MainWindow) onToggleCrosshair() {
	show := !mw.canvas.ShowCrosshair()
	mw.canvas.SetShowCrosshair(show)
	mw.crosshairItem.Checked = show
	mw.prefs.SetBool(prefs.KeyCrosshair, show)
	mw.mainMenu.Refresh()
}

func (mw *MainWindow) onToggleRulers() {
	show := !mw.canvas.ShowRulers()
	mw.canvas.SetShowRulers(show)
	mw.rulersItem.Checked = show
	mw.prefs.SetBool(prefs.KeyShowRulers, show)
	mw.mainMenu.Refresh()
}

func (mw *MainWindow) onToggleDark() {
	dark := !mw.darkItem.Checked
	mw.darkItem.Checked = dark
	mw.prefs.SetBool(prefs.KeyDarkMode, dark)
	mw.app.Settings().SetTheme(&app.LabelSenseTheme{ForceDark: dark})
	mw.mainMenu.Refresh()
}

func (mw *MainWindow) onShortcuts() {
	dialog.ShowInformation("Shortcuts",
		"W / E / Space   draw, edit, pan mode\n"+
			"A / D, Left / Right   previous / next image\n"+
			"Delete   delete checked or selected boxes\n"+
			"Escape   cancel the current drag\n"+
			"F   fit image to window\n"+
			"Right click   deselect (edit mode)\n"+
			"Middle drag   pan in any mode\n"+
			"Wheel   zoom about the pointer",
		mw.Window)
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s\n\n"+
			"Bounding-box annotation for YOLO datasets.\n\n"+
			"Config: %s",
			version.String(), config.DefaultPath()),
		mw.Window)
}

// onClose asks before discarding unsaved changes, then saves preferences.
func (mw *MainWindow) onClose() {
	mw.confirmDiscard(func() {
		size := mw.Canvas().Size()
		mw.prefs.SetFloat(prefs.KeyWindowWidth, float64(size.Width))
		mw.prefs.SetFloat(prefs.KeyWindowHeight, float64(size.Height))
		if err := mw.prefs.Save(); err != nil {
			log.Printf("Failed to save preferences: %v", err)
		}
		if mw.watcher != nil {
			mw.watcher.Stop()
		}
		mw.Close()
	})
}

func zoomText(zoom float64) string {
	return fmt.Sprintf("%.0f%%", zoom*100)
}

func statusText(name, counter string, boxes int, className string) string {
	return fmt.Sprintf("%s  [%s]  %d box(es)  class: %s", name, counter, boxes, className)
}

func windowTitle(projectPath, folder string, modified bool) string {
	title := appTitle
	switch {
	case projectPath != "":
		title += " - " + filepath.Base(projectPath)
	case folder != "":
		title += " - " + filepath.Base(folder)
	}
	if modified {
		title += " *"
	}
	return title
}
