package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chatterbridge/audio"
	"chatterbridge/doctor"
	"chatterbridge/flow"
	"chatterbridge/language"
	"chatterbridge/server"
	"chatterbridge/shutdown"
	"chatterbridge/signdetect"
	"chatterbridge/transcriber"
	"chatterbridge/translator"
)

var errChecksFailed = errors.New("some checks failed")

var signCmd = &cobra.Command{
	Use:   "sign [path]",
	Short: "Detect a sign in a photo or video clip",
	Long: `Open the sign screen, or with --once upload one file and print the label
and confidence. Video clips (.mp4, .mov, .webm) go to the video endpoint.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSign,
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Upload an existing recording once and print the transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

var translateCmd = &cobra.Command{
	Use:   "translate <text...>",
	Short: "Translate text into a target language",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTranslate,
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the supported target languages",
	Args:  cobra.NoArgs,
	RunE:  runLanguages,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the placeholder transcription, translation and sign backend",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check microphone, endpoints, spoken output and clipboard",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

var headlessCmd = &cobra.Command{
	Use:    "headless",
	Short:  "Drive the speech screen from stdin commands (for tests)",
	Args:   cobra.NoArgs,
	Hidden: true,
	RunE:   runHeadlessCmd,
}

func init() {
	signCmd.Flags().Bool("once", false, "detect one file and print the result")
	translateCmd.Flags().String("to", "", "target language code (default: default_target)")
	translateCmd.Flags().String("from", "", "source language code (default: auto)")
	languagesCmd.Flags().Bool("pick", false, "choose a language interactively and print its code")
	languagesCmd.Flags().String("search", "", "only list languages matching this text")
	doctorCmd.Flags().Bool("confirm", false, "ask to confirm the transcript")
	headlessCmd.Flags().String("wav", "", "WAV file replayed as the microphone")
	headlessCmd.Flags().Bool("realtime", true, "replay the WAV at its natural pace")
	headlessCmd.MarkFlagRequired("wav")
}

func runSign(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	once, _ := cmd.Flags().GetBool("once")
	detector := newDetector(cfg.Detect)

	if once {
		if path == "" {
			return errors.New("--once needs a file path")
		}
		f := flow.NewSign(detector, flow.NopSink{})
		out, err := detectOnce(cmd.Context(), f, signSource(cfg.Detect, path))
		if errors.Is(err, signdetect.ErrCameraPermission) {
			return errors.New(signdetect.PermissionMessage)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", signdetect.FailureMessage, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}

	sink := &teaSink{}
	return runSignTUI(flow.NewSign(detector, sink), sink, cfg.Detect, path)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	t, err := transcriber.New(cfg.Transcribe)
	if err != nil {
		return err
	}
	res, err := t.Transcribe(cmd.Context(), args[0])
	if err != nil {
		return errors.New(transcriber.Message(err))
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Text)
	lang := res.DetectedLanguage
	if lang == "" {
		lang = transcriber.AutoDetect
	}
	fmt.Fprintf(out, "Detected language: %s\n", lang)
	return nil
}

func runTranslate(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetString("to")
	from, _ := cmd.Flags().GetString("from")
	if to == "" {
		to = cfg.DefaultTarget
	}
	if !language.Valid(to) {
		return fmt.Errorf("%w: %q (see: chatterbridge languages)", flow.ErrUnknownLanguage, to)
	}
	t, err := translator.New(cfg.Translate)
	if err != nil {
		return err
	}
	got, err := t.Translate(cmd.Context(), strings.Join(args, " "), from, to)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), got.TranslatedText)
	return nil
}

func runLanguages(cmd *cobra.Command, _ []string) error {
	pick, _ := cmd.Flags().GetBool("pick")
	query, _ := cmd.Flags().GetString("search")
	langs := language.All()
	if query != "" {
		langs = language.Search(query)
	}

	if pick {
		code, err := pickLanguage(langs, cfg.DefaultTarget)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), code)
		return nil
	}
	writeLanguageTable(cmd.OutOrStdout(), langs)
	return nil
}

func writeLanguageTable(w io.Writer, langs []language.Language) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Code", "Language"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	for _, l := range langs {
		table.Append([]string{l.Code, l.Label})
	}
	table.Render()
}

func pickLanguage(langs []language.Language, current string) (string, error) {
	if len(langs) == 0 {
		return "", errors.New("no matching languages")
	}
	options := make([]huh.Option[string], len(langs))
	for i, l := range langs {
		options[i] = huh.NewOption(fmt.Sprintf("%s (%s)", l.Label, l.Code), l.Code)
	}
	selected := current
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose a target language").
				Options(options...).
				Height(12).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	sc := cfg.Server
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "chatterbridge").Logger()

	opts := server.Options{
		MaxUploadBytes: int64(sc.MaxUploadMB) << 20,
		Metrics:        sc.MetricsEnable,
		Version:        version,
		Logger:         logger,
	}
	switch sc.Transcriber {
	case "openai":
		opts.Transcriber = transcriber.NewOpenAI(sc.APIKey, "", "", ms(cfg.Transcribe.TimeoutMS))
	case "groq":
		opts.Transcriber = transcriber.NewGroq(sc.APIKey, "", "", ms(cfg.Transcribe.TimeoutMS))
	}
	if cfg.Translate.Table != "" {
		st := translator.NewStatic()
		if err := st.LoadFile(cfg.Translate.Table); err != nil {
			return err
		}
		opts.Translator = st
	}
	image, err := signdetect.LoadLabels(signdetect.Image, sc.ImageLabels)
	if err != nil {
		return err
	}
	video, err := signdetect.LoadLabels(signdetect.Video, sc.VideoLabels)
	if err != nil {
		return err
	}
	opts.Image, opts.Video = image, video

	srv, err := server.New(opts)
	if err != nil {
		return err
	}
	ctx, stop := shutdown.Context(cmd.Context())
	defer stop()

	addr := net.JoinHostPort(sc.Bind, strconv.Itoa(sc.Port))
	logger.Info().Str("transcriber", sc.Transcriber).Bool("metrics", sc.MetricsEnable).Msg("starting placeholder backend")
	return srv.ListenAndServe(ctx, addr, ms(sc.ShutdownMS))
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	confirm, _ := cmd.Flags().GetBool("confirm")
	opts := doctor.Options{Config: cfg, Out: cmd.OutOrStdout()}
	if confirm {
		opts.In = cmd.InOrStdin()
	}
	if setupFlag {
		actx, err := audio.NewContext()
		if err != nil {
			return err
		}
		defer actx.Close()
		pickDevice(actx)
		opts.Config = cfg
		opts.Audio = actx
	}

	ctx, stop := shutdown.Context(cmd.Context())
	defer stop()
	if doctor.Run(ctx, opts) != 0 {
		return errChecksFailed
	}
	return nil
}

func runHeadlessCmd(cmd *cobra.Command, _ []string) error {
	wav, _ := cmd.Flags().GetString("wav")
	realtime, _ := cmd.Flags().GetBool("realtime")
	ctx, stop := shutdown.Context(cmd.Context())
	defer stop()
	return runHeadless(ctx, cfg, wav, realtime, cmd.InOrStdin(), cmd.OutOrStdout())
}
