package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kapitanov/go-chip8/internal/hal"
	"github.com/kapitanov/go-chip8/internal/vm"
	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s PATH_TO_ROM_FILE", filepath.Base(os.Args[0])),
		Short:         "Run emulator",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
	}

	verbose := cmd.Flags().BoolP("verbose", "v", false, "enable verbose logging")
	quirkShift := cmd.Flags().Bool("quirk-shift", false, "8XY6/8XYE shift VY instead of VX")
	quirkIndex := cmd.Flags().Bool("quirk-index", false, "FX55/FX65 increment the index register")

	cmd.RunE = func(_ *cobra.Command, args []string) error {
		loggerOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		if *verbose {
			loggerOpts.Level = slog.LevelDebug
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, loggerOpts)))

		path := args[0]
		bs, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("unable to load file %q: %w", path, err)
		}

		h, err := hal.New()
		if err != nil {
			return fmt.Errorf("unable to initialize hal: %w", err)
		}
		defer h.Shutdown()

		quirks := vm.Quirks{
			ShiftUsesVY:    *quirkShift,
			IncrementIndex: *quirkIndex,
		}

		for {
			machine := vm.New(quirks)
			if err := machine.Load(bs); err != nil {
				return fmt.Errorf("unable to load program %q: %w", path, err)
			}

			err = machine.Run(h)

			if errors.Is(err, hal.ErrQuit) {
				return nil
			}

			if errors.Is(err, hal.ErrReboot) {
				continue
			}

			return err
		}
	}

	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}
