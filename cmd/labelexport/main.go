// Command labelexport writes a project's annotations as a YOLO dataset
// without opening the GUI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"labelsense/internal/app"
	"labelsense/internal/config"
	"labelsense/internal/dataset"
)

func main() {
	projectPath := flag.String("project", "", "Path to project .json")
	out := flag.String("out", "", "Output directory (the dataset is created inside it)")
	configPath := flag.String("config", config.DefaultPath(), "Path to config.toml")
	train := flag.Float64("train", -1, "Train split percentage (default from config)")
	seed := flag.Uint64("seed", 0, "Shuffle seed; 0 uses the config value or a random one")
	quiet := flag.Bool("q", false, "Do not print per-image progress")
	flag.Parse()

	if *projectPath == "" || *out == "" {
		fmt.Println("Usage: labelexport -project <project.json> -out <dir> [-train 80] [-seed N]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	opts := app.ExportOptions{
		OutputDir:    *out,
		TrainPercent: cfg.Export.TrainPercent,
		Seed:         cfg.Export.Seed,
	}
	if *train >= 0 {
		opts.TrainPercent = *train
	}
	if *seed != 0 {
		opts.Seed = *seed
	}
	if !*quiet {
		opts.Progress = func(done, total int) {
			fmt.Printf("\r%d/%d images", done, total)
			if done == total {
				fmt.Println()
			}
		}
	}

	state := app.NewState(cfg.Classes.Defaults, nil)
	fmt.Printf("=== Loading project: %s ===\n", *projectPath)
	if err := state.LoadProject(*projectPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load project: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Folder: %s\n", state.Folder())
	fmt.Printf("Classes: %v\n", state.ClassNames())
	fmt.Printf("Annotated images: %d of %d\n", state.AnnotatedCount(), len(state.ImageNames()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("\n=== Exporting (train %.0f%%) ===\n", opts.TrainPercent)
	res, err := state.Export(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nDataset: %s\n", res.Dir)
	fmt.Printf("Manifest: %s\n", res.ManifestPath)
	fmt.Println(res.Summary())

	// Read the manifest back so a broken write fails the run.
	desc, err := describeManifest(res.ManifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(desc)
}

// describeManifest loads a written manifest and summarizes it on one line.
func describeManifest(path string) (string, error) {
	m, err := dataset.ReadManifest(path)
	if err != nil {
		return "", err
	}
	if m.NC != len(m.Names) {
		return "", fmt.Errorf("manifest %s: nc is %d but %d names are listed", path, m.NC, len(m.Names))
	}
	return fmt.Sprintf("nc: %d, names: %v, train: %s, val: %s", m.NC, m.Names, m.Train, m.Val), nil
}
