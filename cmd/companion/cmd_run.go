package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-companion/core"
	"github.com/koscakluka/ema-companion/core/audio"
	"github.com/koscakluka/ema-companion/core/audio/miniaudio"
	"github.com/koscakluka/ema-companion/core/events"
	"github.com/koscakluka/ema-companion/core/history/httpstore"
	"github.com/koscakluka/ema-companion/core/speech"
	"github.com/koscakluka/ema-companion/core/transcript"
	"github.com/koscakluka/ema-companion/core/transport/wsbridge"
	"github.com/koscakluka/ema-companion/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var conversationFlag string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the companion chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		cfg, err := config.Load(cfgPath, envPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if conversationFlag != "" {
			cfg.ConversationID = conversationFlag
		}

		closeLog, err := setupLogging(cfg.Log)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func init() {
	runCmd.Flags().StringVar(&conversationFlag, "conversation", "", "conversation to open, overrides the config")
}

// setupLogging sends slog output to the configured file so it does not
// draw over the terminal UI.
func setupLogging(cfg config.LogConfig) (func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	var out io.Writer = io.Discard
	closeFn := func() {}
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = file
		closeFn = func() { _ = file.Close() }
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return closeFn, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	pool := audio.NewPool()
	store := httpstore.NewClient(cfg.Backend.BaseURL,
		httpstore.WithAPIKey(cfg.Backend.APIKey),
		httpstore.WithTimeout(cfg.Backend.Timeout),
	)

	var device *miniaudio.Client
	if cfg.Playback.Enabled || cfg.Capture.Enabled {
		client, err := miniaudio.NewClient(pool, miniaudio.WithCaptureEncoding(captureEncoding(cfg.Capture)))
		if err != nil {
			slog.Warn("audio device unavailable, continuing without sound", "error", err)
		} else {
			device = client
			defer device.Close()
		}
	}

	ui := newModel()
	program := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithContext(ctx))

	opts := []orchestration.SessionOption{
		orchestration.WithAudioPool(pool),
		orchestration.WithHistoryStore(store),
		orchestration.WithSubmitter(store),
		orchestration.WithCooldown(cfg.Playback.Cooldown),
		orchestration.WithSettlingDelay(cfg.Playback.SettlingDelay),
		orchestration.WithDecoderOptions(speech.WithDefaultMediaType(cfg.Playback.DefaultMediaType)),
		orchestration.WithEventCallback(func(event events.Event) {
			slog.Debug("session event", "namespace", event.Kind().Namespace(), "kind", event.Kind())
		}),
		orchestration.WithCaptionCallback(func(caption string) { program.Send(captionMsg(caption)) }),
		orchestration.WithReplyCallback(func(reply *string) { program.Send(replyMsg{text: reply}) }),
		orchestration.WithTranscriptCallback(func(messages []transcript.DisplayMessage) {
			program.Send(transcriptMsg(messages))
		}),
	}
	if device != nil && cfg.Playback.Enabled {
		opts = append(opts, orchestration.WithSpeaker(device))
	}
	if device != nil && cfg.Capture.Enabled {
		opts = append(opts, orchestration.WithRecorder(device))
	}

	session := orchestration.NewSession(cfg.ConversationID, opts...)
	ui.session = session

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.Close()

	var group errgroup.Group
	if cfg.Backend.EventsURL != "" {
		header := http.Header{}
		if cfg.Backend.APIKey != "" {
			header.Set("Authorization", "Bearer "+cfg.Backend.APIKey)
		}
		bridge := wsbridge.NewBridge(cfg.Backend.EventsURL, session.Bus(), wsbridge.WithHeader(header))
		// A dropped connection only stops live replies; the chat stays usable.
		group.Go(func() error {
			if err := bridge.Run(ctx); err != nil {
				slog.Error("event stream stopped", "error", err)
				program.Send(statusMsg{err: err})
			}
			return nil
		})
	}

	group.Go(func() error {
		err := session.RefreshTranscript(ctx)
		if err != nil && !errors.Is(err, orchestration.ErrMissingConversationID) {
			program.Send(statusMsg{err: err})
		}
		return nil
	})

	group.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})

	return group.Wait()
}

func captureEncoding(cfg config.CaptureConfig) audio.EncodingInfo {
	info := audio.GetDefaultEncodingInfo()
	if cfg.SampleRate > 0 {
		info.SampleRate = cfg.SampleRate
	}
	if cfg.Channels > 0 {
		info.Channels = cfg.Channels
	}
	return info
}
