package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"chatterbridge/audio"
	"chatterbridge/config"
	"chatterbridge/flow"
	"chatterbridge/log"
)

var version = "dev"

var (
	configPath string
	logPath    string
	deviceName string
	setupFlag  bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chatterbridge",
	Short: "Record speech, transcribe it, translate it and read signs",
	Long: `chatterbridge records from the microphone, uploads the recording to a
transcription service once, and shows the text. The text can be translated
into any of the supported languages and read aloud.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { log.Close() },
	RunE:              runSpeech,
	DisableAutoGenTag: true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default: "+config.DefaultPath()+")")
	pf.StringVar(&logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	pf.StringVar(&deviceName, "device", "", "use the named microphone")
	pf.BoolVar(&setupFlag, "setup", false, "select the microphone interactively")

	rootCmd.AddCommand(
		signCmd,
		transcribeCmd,
		translateCmd,
		languagesCmd,
		serveCmd,
		doctorCmd,
		headlessCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup resolves logging and configuration before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	dir, err := log.ResolveDir(logPath)
	if err != nil {
		return fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(dir)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	path, explicit := configPath, cmd.Flags().Changed("config")
	if path == "" {
		path = os.Getenv("CHATTERBRIDGE_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = config.DefaultPath()
	}
	c, err := config.Load(path, explicit)
	if err != nil {
		return err
	}
	if deviceName != "" {
		c.Recording.Device = deviceName
	}
	cfg = c

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.Infof("start %s version=%s", cmd.Name(), version)
	return nil
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	f, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

// pickDevice applies --setup: with no --device given, the user chooses.
func pickDevice(actx audio.Context) {
	if !setupFlag || deviceName != "" {
		return
	}
	dev, err := audio.SelectDevice(actx)
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Printf("Warning: device selection failed: %v\nFalling back to default device\n", err)
		return
	}
	cfg.Recording.Device = dev.Name
}

func runSpeech(cmd *cobra.Command, _ []string) error {
	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		return fmt.Errorf("initializing audio: %w", err)
	}
	defer actx.Close()
	pickDevice(actx)

	rec, err := newRecorder(actx, cfg.Recording)
	if err != nil {
		return err
	}
	sink := &teaSink{beeps: true}
	opts, err := speechOptions(cfg, rec, sink)
	if err != nil {
		return err
	}
	f := flow.NewSpeech(opts)

	device := rec.DeviceName()
	if audio.IsBluetooth(device) {
		device += " (BT!)"
	}
	backend := fmt.Sprintf("%s | %s | %s", cfg.Recording.Format, opts.Transcriber.Name(), opts.Translator.Name())
	return runSpeechTUI(f, sink, backend, device)
}
