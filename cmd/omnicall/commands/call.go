package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/haivivi/omnicall/pkg/audio/wav"
	"github.com/haivivi/omnicall/pkg/call"
	"github.com/haivivi/omnicall/pkg/cli"
	"github.com/haivivi/omnicall/pkg/metrics"
	"github.com/haivivi/omnicall/pkg/omni"
	"github.com/haivivi/omnicall/pkg/transport"
	"github.com/haivivi/omnicall/pkg/turn"
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Start a realtime call",
	Long: `Start a realtime voice call.

Microphone audio is captured with an external recorder (arecord by default),
framed as 16 kHz mono WAV and streamed to the service. Each spoken reply is
collected and played with an external player (ffplay by default). With
--camera-dir the images of a directory are replayed as a camera feed.

Interactive commands:
  /commit        - End the current user turn
  /cancel        - Stop the reply and commit
  /send <file>   - Send a WAV or raw 16 kHz PCM file as one utterance
  /status        - Show connection and turn state
  /exit          - End the call

Examples:
  omnicall -c prod call
  omnicall call --no-mic --audio question.wav
  omnicall call -f call.yaml --camera-dir ./frames --metrics-addr :9090`,
	RunE: runCall,
}

var (
	callMedia       mediaOptions
	callAudioFile   string
	callMetricsAddr string
)

func init() {
	callCmd.Flags().BoolVar(&callMedia.NoMic, "no-mic", false, "do not capture the microphone")
	callCmd.Flags().StringVar(&callMedia.Recorder, "recorder", "", "recorder command writing raw S16LE PCM to stdout")
	callCmd.Flags().IntVar(&callMedia.RecorderRate, "recorder-rate", 0, "recorder sample rate (resampled to 16000)")
	callCmd.Flags().StringVar(&callMedia.Player, "player", "", "player command; the reply file path is appended")
	callCmd.Flags().StringVar(&callMedia.CameraDir, "camera-dir", "", "replay JPEG/PNG images from this directory as the camera")
	callCmd.Flags().Float64Var(&callMedia.CameraFPS, "camera-fps", 0, "camera replay rate (default 10)")
	callCmd.Flags().StringVar(&callAudioFile, "audio", "", "send this audio file as the first utterance")
	callCmd.Flags().StringVar(&callMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func runCall(cmd *cobra.Command, args []string) error {
	cctx, err := getContext()
	if err != nil {
		return err
	}

	var profile *cli.Profile
	if inputFile != "" {
		if profile, err = cli.LoadProfile(inputFile); err != nil {
			return err
		}
	}

	paths, err := cli.NewPaths(appName)
	if err != nil {
		return err
	}
	playbackDir, err := paths.EnsurePlaybackDir()
	if err != nil {
		return fmt.Errorf("create playback directory: %w", err)
	}

	cfg, err := callConfig(cctx, profile, playbackDir)
	if err != nil {
		return err
	}
	media := callMedia
	media.merge(profile)
	deps, err := media.deps()
	if err != nil {
		return err
	}

	slog.Debug("call config", "context", cctx.Name, "url", cfg.URL, "mic", !media.NoMic, "camera", media.CameraDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	con := newConsole()
	sess, err := call.New(cfg, deps, con)
	if err != nil {
		return err
	}
	defer func() {
		sess.EndCall()
		<-sess.Done()
	}()

	g, gctx := errgroup.WithContext(ctx)

	if callMetricsAddr != "" {
		exp, err := metrics.NewExporter(callMetricsAddr)
		if err != nil {
			return err
		}
		g.Go(exp.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return exp.Shutdown(shutdownCtx)
		})
		cli.PrintInfo("Metrics on http://%s/metrics", callMetricsAddr)
	}

	connectCtx, connectCancel := context.WithTimeout(gctx, 30*time.Second)
	err = sess.StartCall(connectCtx)
	connectCancel()
	if err != nil {
		return fmt.Errorf("failed to start call: %w", err)
	}
	cli.PrintSuccess("Call started (session %s)", sess.ID())

	if callAudioFile != "" {
		if err := sendFile(gctx, sess, callAudioFile); err != nil {
			cli.PrintError("%v", err)
		}
	}

	g.Go(func() error {
		select {
		case <-sess.Done():
			cancel()
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		interactive(gctx, sess)
		cancel()
		return nil
	})

	err = g.Wait()
	fmt.Println()
	cli.PrintInfo("Call ended")
	return err
}

// interactive reads commands from stdin until /exit, EOF or ctx ends.
func interactive(ctx context.Context, sess *call.Session) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Println("Speak into the microphone. Type /help for commands.")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				if callMedia.NoMic && callAudioFile != "" {
					// Non-interactive input: stay up for the reply.
					<-ctx.Done()
				}
				return
			}
			if line == "" {
				continue
			}
			if handleCommand(ctx, sess, line) {
				return
			}
		}
	}
}

func handleCommand(ctx context.Context, sess *call.Session, input string) bool {
	parts := strings.Fields(input)
	switch strings.ToLower(parts[0]) {
	case "/exit", "/quit":
		return true

	case "/commit":
		if err := sess.Commit(); err != nil {
			cli.PrintError("Failed to commit: %v", err)
		}

	case "/cancel":
		if err := sess.CancelResponse(); err != nil {
			cli.PrintError("Failed to cancel: %v", err)
			break
		}
		if err := sess.Commit(); err != nil {
			cli.PrintError("Failed to commit: %v", err)
		}

	case "/send":
		if len(parts) < 2 {
			cli.PrintError("Usage: /send <file>")
			break
		}
		if err := sendFile(ctx, sess, parts[1]); err != nil {
			cli.PrintError("%v", err)
		}

	case "/status":
		fmt.Println(styles.StatusLine(sess.ConnectionState(), sess.TurnState(), "session "+sess.ID(), 0))

	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /commit       - End the current user turn")
		fmt.Println("  /cancel       - Stop the reply and commit")
		fmt.Println("  /send <file>  - Send a WAV or raw 16 kHz PCM file")
		fmt.Println("  /status       - Show connection and turn state")
		fmt.Println("  /exit, /quit  - End the call")

	default:
		cli.PrintError("Unknown command: %s (try /help)", parts[0])
	}
	return false
}

func sendFile(ctx context.Context, sess *call.Session, path string) error {
	pcm, err := loadUtterance(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	if err := sess.SendUtterance(pcm, wav.Mono16K); err != nil {
		return fmt.Errorf("failed to send %s: %w", path, err)
	}
	cli.PrintInfo("Sent %s (%s, %s)", path, cli.FormatBytes(len(pcm)), cli.FormatDuration(wav.Mono16K.Duration(len(pcm))))
	return nil
}

var styles = cli.NewStyles(cli.DefaultTheme)

// console prints call notifications. Its methods run on the session's
// dispatch goroutine.
type console struct {
	conn    transport.State
	turn    turn.State
	inReply bool
	started time.Time
}

func newConsole() *console {
	return &console{}
}

func (c *console) status(detail string) {
	fmt.Println(styles.StatusLine(c.conn, c.turn, detail, 0))
}

func (c *console) endReply() {
	if c.inReply {
		fmt.Println()
		c.inReply = false
	}
}

func (c *console) OnConnectionState(st transport.State) {
	c.conn = st
	c.endReply()
	c.status("")
}

func (c *console) OnTurnState(st turn.State) {
	c.turn = st
	detail := ""
	switch st {
	case turn.AISpeaking:
		c.started = time.Now()
	case turn.Idle:
		if !c.started.IsZero() {
			detail = "reply took " + cli.FormatDuration(time.Since(c.started))
			c.started = time.Time{}
		}
	}
	c.endReply()
	c.status(detail)
}

func (c *console) OnUserTranscript(text string) {
	c.endReply()
	fmt.Println(styles.Label.Render("you:"), styles.User.Render(text))
}

func (c *console) OnTranscriptDelta(delta string) {
	if !c.inReply {
		fmt.Print(styles.Label.Render("ai:"), " ")
		c.inReply = true
	}
	fmt.Print(styles.Reply.Render(delta))
}

func (c *console) OnTranscriptDone(text string) {
	if !c.inReply && text != "" {
		fmt.Println(styles.Label.Render("ai:"), styles.Reply.Render(text))
		return
	}
	c.endReply()
}

func (c *console) OnPlaybackComplete(err error) {
	if err == nil {
		slog.Debug("reply played")
	}
}

func (c *console) OnError(err error) {
	c.endReply()
	cli.PrintError("%v", err)
	if e, ok := omni.AsError(err); ok && e.IsAuth() {
		cli.PrintWarning("Check the API key of the current context (omnicall config view)")
	}
}

var _ call.Listener = (*console)(nil)
