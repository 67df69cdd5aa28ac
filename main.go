// Package main provides the entry point for the LabelSense application.
package main

import (
	"flag"
	"log"

	"labelsense/internal/app"
	"labelsense/internal/config"
	"labelsense/internal/image"
	"labelsense/internal/version"
	"labelsense/ui/mainwindow"
	"labelsense/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
)

const appID = "com.labelsense.app"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config.toml")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s", version.String())

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Using default config: %v", err)
	}

	cache, err := image.NewCache(cfg.Images.CacheSize)
	if err != nil {
		log.Fatalf("Image cache: %v", err)
	}

	appState := app.NewState(cfg.Classes.Defaults, cache)
	appPrefs := prefs.Load()

	a := fyneapp.NewWithID(appID)
	a.Settings().SetTheme(&app.LabelSenseTheme{ForceDark: appPrefs.Bool(prefs.KeyDarkMode, true)})

	win := mainwindow.New(a, appState, cfg, appPrefs)

	// A project path on the command line wins over the last session.
	if flag.NArg() > 0 {
		win.LoadProject(flag.Arg(0))
	} else {
		win.RestoreSession()
	}

	win.ShowAndRun()
}
