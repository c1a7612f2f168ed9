package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/engine"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/logging"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/ui"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/wine"
)

// sortedCatalogName is the pre-pass artifact built beside the heap
// files from the wine CSV.
const sortedCatalogName = "wines.sorted"

type Configuration struct {
	WineData     string
	PageSize     int
	MaxKeys      int
	HeapSize     uint64
	PageFrames   int
	IndexFrames  int
	CommandsFile string
	OutFile      string
	StorageDir   string
	Interactive  bool
	LogLevel     string
}

func main() {
	config := parseArguments()

	if err := logging.Configure(logging.Config{Level: config.LogLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Shutdown()

	showSplashScreen()

	if err := run(config); err != nil {
		logging.Error("run failed", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseArguments processes command-line flags
func parseArguments() Configuration {
	var config Configuration

	flag.StringVar(&config.WineData, "wine-data", "", "Source catalog CSV path")
	flag.IntVar(&config.PageSize, "page-size-in-bytes", 4096, "Heap page size in bytes")
	flag.IntVar(&config.MaxKeys, "max-keys-per-node", 4, "Maximum keys per index node")
	heapSize := flag.Uint64("heap-size-in-bytes", 40*1024*1024, "Heap file size in bytes")
	flag.IntVar(&config.PageFrames, "amount-of-page-frames", 1, "Data page frames in memory")
	flag.IntVar(&config.IndexFrames, "amount-of-index-frames", 1, "Index node frames in memory")
	flag.StringVar(&config.CommandsFile, "commands-file", "in.txt", "Command file path")
	flag.StringVar(&config.OutFile, "out-file", "out.txt", "Output file path")
	flag.StringVar(&config.StorageDir, "storage-dir", "./data", "Persisted state directory")
	flag.BoolVar(&config.Interactive, "interactive", false, "Open the interactive shell instead of batch mode")
	flag.StringVar(&config.LogLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")

	flag.Parse()

	config.HeapSize = *heapSize
	return config
}

func run(config Configuration) error {
	catalog, err := prepareSource(config)
	if err != nil {
		return err
	}

	// Keep the interface nil when there is no catalog so the engine
	// can tell "no source" apart from an empty one.
	var source wine.Source
	if catalog != nil {
		defer catalog.Close()
		source = catalog
	}

	if config.Interactive {
		return runInteractive(config, source)
	}
	return runBatch(config, source)
}

// prepareSource builds (or rebuilds) the sorted catalog from the wine
// CSV and opens it. Without --wine-data only searches are possible.
func prepareSource(config Configuration) (*wine.SortedCatalog, error) {
	if config.WineData == "" {
		return nil, nil
	}

	records, err := wine.ReadCSVFile(config.WineData)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.StorageDir, 0o755); err != nil {
		return nil, err
	}
	sortedPath := filepath.Join(config.StorageDir, sortedCatalogName)
	if err := wine.BuildSortedCatalog(records, sortedPath); err != nil {
		return nil, err
	}

	return wine.OpenSortedCatalog(sortedPath)
}

func newEngine(config Configuration, source wine.Source) (*engine.Engine, error) {
	return engine.New(engine.Config{
		StorageDir:     config.StorageDir,
		PageSizeBytes:  config.PageSize,
		HeapSizeBytes:  config.HeapSize,
		MaxKeysPerNode: config.MaxKeys,
		PageFrames:     config.PageFrames,
		IndexFrames:    config.IndexFrames,
	}, source)
}

// runBatch processes the command file and writes the output file.
func runBatch(config Configuration, source wine.Source) error {
	in, err := os.Open(config.CommandsFile)
	if err != nil {
		return err
	}
	defer in.Close()

	script, err := engine.ParseScript(in)
	if err != nil {
		return err
	}

	// The command header's fan-out wins over the flag, matching the
	// file-driven surface.
	config.MaxKeys = script.MaxKeys

	eng, err := newEngine(config, source)
	if err != nil {
		return err
	}
	defer eng.Close()

	out, err := os.Create(config.OutFile)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := engine.NewInterpreter(eng).Run(script, out); err != nil {
		return err
	}
	return eng.Flush()
}

// runInteractive opens the bubbletea shell over a live engine.
func runInteractive(config Configuration, source wine.Source) error {
	eng, err := newEngine(config, source)
	if err != nil {
		return err
	}
	defer eng.Close()

	p := tea.NewProgram(ui.NewModel(eng), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %v", err)
	}
	return nil
}

// showSplashScreen displays the banner
func showSplashScreen() {
	splash := `
 __   __              _                 _ _  __   ___
 \ \ / /_ _  __ _  __| |_ __ __ _ ___(_) | \ \ / (_)_ __  _   _ _ __ ___
  \ V / _' |/ _' |/ _' | '__/ _' / __| | |  \ V /| | '_ \| | | | '_ ' _ \
   | | (_| | (_| | (_| | | | (_| \__ \ | |   | | | | | | | |_| | | | | | |
   |_|\__, |\__, |\__,_|_|  \__,_|___/_|_|   |_| |_|_| |_|\__,_|_| |_| |_|
      |___/ |___/
            a two-frame wine engine
`

	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	fmt.Println(style.Render(splash))
}
