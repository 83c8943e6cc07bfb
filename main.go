package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rehearse/audio"
	"rehearse/gemini"
	"rehearse/history"
	"rehearse/log"
	"rehearse/session"
	"rehearse/shutdown"
)

var version = "dev"

func main() {
	modeFlag := flag.String("mode", "voice", "Interview mode: voice (continuous) or push-to-talk")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	resumeFlag := flag.String("resume", "", "Path to a plain-text resume to ground the interviewer")
	jobFlag := flag.String("job", "", "Path to a plain-text job description")
	historyFlag := flag.Bool("history", false, "Print past interview results and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("rehearse %s\n", version)
		os.Exit(0)
	}

	mode, err := session.ParseMode(*modeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	settings, err := loadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store := history.NewJSONStore(settings.DataDir)
	if *historyFlag {
		printHistory(store)
		os.Exit(0)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	client, err := gemini.NewClient(gemini.Config{
		APIKey:    settings.GeminiAPIKey,
		LiveModel: settings.LiveModel,
		TextModel: settings.TextModel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	resume, err := readOptionalFile(*resumeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	job, err := readOptionalFile(*jobFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := audioCtx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Fprintf(os.Stderr, "Error: microphone %q not found\n", *deviceFlag)
			os.Exit(1)
		}
	} else if *setupFlag {
		selectedDevice, err = selectDevice(audioCtx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	deps := &appDeps{
		audioCtx: audioCtx,
		device:   selectedDevice,
		client:   client,
		store:    store,
		mode:     mode,
		resume:   resume,
		job:      job,
	}

	p := tea.NewProgram(newTUIModel(deps), tea.WithAltScreen())

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		p.Send(quitRequestMsg{})
	}()

	if _, err := p.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func readOptionalFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func printHistory(store history.Store) {
	records := store.List()
	if len(records) == 0 {
		fmt.Println("No past interviews.")
		return
	}
	for _, rec := range records {
		score := "no report"
		if rec.Report != nil {
			score = fmt.Sprintf("%d/100", rec.Report.OverallScore)
		}
		fmt.Printf("%s  %-14s %-10s %d messages\n",
			rec.CreatedAt.Format("2006-01-02 15:04"),
			rec.Config.Category,
			score,
			len(rec.Transcript))
	}
}
