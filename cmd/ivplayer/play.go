package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/sendrec/ivplayer/internal/interaction"
	"github.com/sendrec/ivplayer/internal/mpv"
	"github.com/sendrec/ivplayer/internal/playback"
	"github.com/sendrec/ivplayer/internal/player"
	"github.com/sendrec/ivplayer/internal/scheduler"
)

const pollInterval = 100 * time.Millisecond

func simulate(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("simulate", flag.ContinueOnError)
	file := fset.String("f", "interactions.yaml", "interaction file")
	duration := fset.Float64("duration", 0, "video length in seconds; overrides the file")
	speed := fset.Float64("speed", 1, "virtual clock speed")
	hold := fset.Bool("hold", false, "stay paused when an interaction pauses playback")
	if err := fset.Parse(args); err != nil {
		return err
	}

	f, defs, err := interaction.LoadFile(*file)
	if err != nil {
		return err
	}
	length := f.Duration
	if *duration > 0 {
		length = *duration
	}
	if length <= 0 {
		return errors.New("video duration is required (set duration in the file or -duration)")
	}

	engine, err := playback.NewClockEngine(length, playback.WithSpeed(*speed))
	if err != nil {
		return err
	}

	logger := slog.Default().With("title", f.Title)
	p, err := player.New(player.Config{
		Interactions: defs,
		Engine:       engine,
		Logger:       logger,
		OnChange:     logChange(logger, defs, nil),
	})
	if err != nil {
		return err
	}
	defer p.Close()

	logger.Info("simulate: playing", "duration", length, "speed", *speed, "interactions", len(defs))
	return playToEnd(ctx, p, *hold)
}

func runMPV(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("mpv", flag.ContinueOnError)
	file := fset.String("f", "interactions.yaml", "interaction file")
	socket := fset.String("socket", "/tmp/mpv.sock", "mpv --input-ipc-server path or host:port")
	hold := fset.Bool("hold", false, "stay paused when an interaction pauses playback")
	if err := fset.Parse(args); err != nil {
		return err
	}

	_, defs, err := interaction.LoadFile(*file)
	if err != nil {
		return err
	}

	engine, err := mpv.Dial(*socket)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	logger := slog.Default().With("socket", *socket)
	p, err := player.New(player.Config{
		Interactions: defs,
		Engine:       engine,
		Logger:       logger,
		OnChange:     logChange(logger, defs, engine),
	})
	if err != nil {
		return err
	}
	defer p.Close()

	logger.Info("mpv: attached", "interactions", len(defs))
	return playToEnd(ctx, p, *hold)
}

// logChange reports visibility changes and, with an mpv engine, mirrors
// them on the OSD.
func logChange(logger *slog.Logger, defs []interaction.Def, osd *mpv.Engine) func(scheduler.Change) {
	labels := make(map[int]string, len(defs))
	for _, d := range defs {
		labels[d.ID] = d.Label
		if labels[d.ID] == "" {
			labels[d.ID] = d.Library
		}
	}
	return func(c scheduler.Change) {
		logger.Info("interaction "+string(c.Kind), "id", c.ID, "label", labels[c.ID], "second", c.Second)
		if osd != nil && c.Kind == scheduler.Mounted {
			go func() {
				if err := osd.ShowText(labels[c.ID], 3*time.Second); err != nil {
					logger.Debug("mpv: show text failed", "error", err)
				}
			}()
		}
	}
}

// playToEnd plays until the video ends or ctx is done. A pause raised by
// an interaction is resumed on the next poll unless hold is set.
func playToEnd(ctx context.Context, p *player.Player, hold bool) error {
	if err := p.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	held := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s := p.Snapshot()
			switch {
			case s.Ended:
				slog.Info("playback ended", "time", s.Time)
				return nil
			case s.Playing:
				held = false
			case hold:
				if !held {
					slog.Info("playback paused by interaction, holding", "time", s.Time)
					held = true
				}
			default:
				slog.Info("playback paused by interaction, resuming", "time", s.Time)
				if err := p.Play(); err != nil {
					return fmt.Errorf("resume: %w", err)
				}
			}
		}
	}
}
