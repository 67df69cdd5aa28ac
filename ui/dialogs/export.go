// Package dialogs provides application dialogs.
package dialogs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"labelsense/internal/app"
	"labelsense/internal/config"
	"labelsense/internal/dataset"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// ExportDialog collects the dataset export options, then runs the export
// with a progress bar and a Cancel button.
type ExportDialog struct {
	state  *app.State
	window fyne.Window

	outEntry   *widget.Entry
	trainEntry *widget.Entry
	seedEntry  *widget.Entry

	defaults config.ExportConfig
	lastDir  string

	onDone func(res *dataset.Result)
}

// NewExportDialog creates a new export dialog. lastDir pre-fills the output
// folder; onDone is called after a successful export.
func NewExportDialog(state *app.State, window fyne.Window, defaults config.ExportConfig,
	lastDir string, onDone func(*dataset.Result)) *ExportDialog {
	return &ExportDialog{
		state:    state,
		window:   window,
		defaults: defaults,
		lastDir:  lastDir,
		onDone:   onDone,
	}
}

// Show displays the dialog.
func (d *ExportDialog) Show() {
	content := d.createContent()

	dlg := dialog.NewCustomConfirm(
		"Export YOLO Dataset",
		"Export",
		"Cancel",
		content,
		func(ok bool) {
			if !ok {
				return
			}
			opts, err := ParseExportForm(d.outEntry.Text, d.trainEntry.Text, d.seedEntry.Text)
			if err != nil {
				dialog.ShowError(err, d.window)
				return
			}
			d.run(opts)
		},
		d.window,
	)
	dlg.Resize(fyne.NewSize(480, 300))
	dlg.Show()
}

func (d *ExportDialog) createContent() fyne.CanvasObject {
	d.outEntry = widget.NewEntry()
	d.outEntry.SetPlaceHolder("Output folder")
	d.outEntry.SetText(d.lastDir)
	browse := widget.NewButton("Browse...", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err == nil && uri != nil {
				d.outEntry.SetText(uri.Path())
			}
		}, d.window)
	})

	d.trainEntry = widget.NewEntry()
	d.trainEntry.SetText(strconv.FormatFloat(d.defaults.TrainPercent, 'f', -1, 64))

	d.seedEntry = widget.NewEntry()
	d.seedEntry.SetPlaceHolder("0 = random")
	d.seedEntry.SetText(strconv.FormatUint(d.defaults.Seed, 10))

	form := widget.NewForm(
		widget.NewFormItem("Output", container.NewBorder(nil, nil, nil, browse, d.outEntry)),
		widget.NewFormItem("Train %", d.trainEntry),
		widget.NewFormItem("Seed", d.seedEntry),
	)

	info := widget.NewLabel(fmt.Sprintf("%d annotated image(s) in %s",
		d.state.AnnotatedCount(), d.state.Folder()))
	info.Wrapping = fyne.TextWrapWord

	return container.NewVBox(
		widget.NewCard("Dataset", "", form),
		info,
	)
}

// run performs the export in the background.
func (d *ExportDialog) run(opts app.ExportOptions) {
	ctx, cancel := context.WithCancel(context.Background())

	bar := widget.NewProgressBar()
	status := widget.NewLabel("Preparing...")
	progress := dialog.NewCustom("Exporting", "Cancel",
		container.NewVBox(status, bar), d.window)
	progress.SetOnClosed(cancel)
	progress.Resize(fyne.NewSize(360, 140))
	progress.Show()

	opts.Progress = func(done, total int) {
		if total > 0 {
			bar.SetValue(float64(done) / float64(total))
		}
		status.SetText(fmt.Sprintf("%d / %d images", done, total))
	}

	go func() {
		defer cancel()
		res, err := d.state.Export(ctx, opts)
		progress.Hide()

		switch {
		case errors.Is(err, context.Canceled):
			dialog.ShowInformation("Export Cancelled", "The export was cancelled.", d.window)
		case err != nil:
			dialog.ShowError(err, d.window)
		default:
			dialog.ShowInformation("Export Complete",
				fmt.Sprintf("%s\n\nWritten to %s", res.Summary(), res.Dir), d.window)
			if d.onDone != nil {
				d.onDone(res)
			}
		}
	}()
}

// ParseExportForm validates the text fields of the export form.
func ParseExportForm(outDir, trainPercent, seed string) (app.ExportOptions, error) {
	var opts app.ExportOptions

	opts.OutputDir = strings.TrimSpace(outDir)
	if opts.OutputDir == "" {
		return opts, errors.New("choose an output folder")
	}

	p, err := strconv.ParseFloat(strings.TrimSpace(trainPercent), 64)
	if err != nil || p < 0 || p > 100 {
		return opts, fmt.Errorf("train percentage must be a number from 0 to 100, got %q", trainPercent)
	}
	opts.TrainPercent = p

	if s := strings.TrimSpace(seed); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return opts, fmt.Errorf("seed must be a non-negative integer, got %q", seed)
		}
		opts.Seed = v
	}
	return opts, nil
}
