package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rojolang/jamloop-go/pkg/jam"
	"github.com/rojolang/jamloop-go/pkg/llm"
)

var (
	verbose     bool
	bpm         float64
	midiPort    string
	createPort  bool
	style       string
	monitorAddr string
	noMetronome bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jamloop",
		Short: "Jam with an LLM over audio in, MIDI out",
		Long:  "jamloop listens to your instrument, sends each phrase to a language model acting as a musician, and plays its reply back over MIDI.",
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(jamCmd())
	rootCmd.AddCommand(devicesCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		jam.GetGlobalLogger().WithError(err).Fatal("command failed")
	}
}

func setupLogger() {
	logCfg := jam.DefaultLogConfig()
	if verbose {
		logCfg.Level = zerolog.DebugLevel
	}
	jam.SetGlobalLogger(jam.NewLogger(logCfg))
}

func jamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jam",
		Short: "Run a call-and-response session",
		Long:  "Start listening to the default audio input and jam until interrupted (Ctrl-C). Type 's' then Enter at any time to change the playing style.",
		Run: func(cmd *cobra.Command, args []string) {
			setupLogger()
			log := jam.GetGlobalLogger()

			cfg := jam.NewConfig()
			applyFlags(cmd, cfg)

			if issues := cfg.Validate(); len(issues) > 0 {
				for _, issue := range issues {
					log.Error(issue)
				}
				log.Fatal("configuration invalid")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mic, err := jam.NewMicSource(cfg.SampleRate, cfg.BlockSize)
			if err != nil {
				log.WithError(err).Fatal("no usable audio input")
			}
			defer mic.Stop()
			if err := mic.Start(); err != nil {
				log.WithError(err).Fatal("failed to start audio input")
			}

			out, err := jam.OpenMIDIOut(cfg.MIDIPort, cfg.CreateVirtualPort)
			if err != nil {
				log.WithError(err).Fatal("no usable MIDI output")
			}
			defer out.Close()

			musician, err := llm.FromConfig(cfg)
			if err != nil {
				log.WithError(err).Fatal("failed to build musician provider")
			}

			gate := jam.NewAudioGate(jam.GateConfig{
				SampleRate:       cfg.SampleRate,
				SilenceThreshold: cfg.SilenceThreshold,
				SilenceTimeout:   cfg.SilenceTimeout,
				MinOnset:         cfg.MinOnset,
				MaxRecord:        cfg.MaxRecord,
			}, mic)

			player := jam.NewPlayer(out.Send)
			if cfg.Metronome {
				metro := jam.NewMetronome(out.Send, cfg.BPM)
				metro.Start(ctx)
				defer metro.Stop()
				player.SetClock(metro)
			}

			sess := jam.NewSession(gate, jam.NewPitchTracker(), musician, player)
			sess.SetVoicedThreshold(cfg.SilenceThreshold)
			sess.SetStyle(cfg.DefaultStyle)

			if cfg.MonitorAddr != "" {
				mon := jam.NewMonitor(cfg.MonitorAddr)
				if err := mon.Start(); err != nil {
					log.WithError(err).Fatal("failed to start monitor")
				}
				defer mon.Stop()
				sess.SetEventSink(mon)
			}

			go jam.NewStyleListener(os.Stdin, os.Stdout, sess.SetStyle).Run(ctx)

			fmt.Printf("Jamming at %.1f BPM with %s. Play a phrase; type 's' + Enter to change style; Ctrl-C to quit.\n",
				cfg.BPM, musician.Name())

			if err := sess.Run(ctx); err != nil {
				log.WithError(err).Fatal("session ended with error")
			}
			fmt.Println("Goodbye!")
		},
	}

	cmd.Flags().Float64Var(&bpm, "bpm", 0, "Beats per minute for the session")
	cmd.Flags().StringVar(&midiPort, "port", "", "Existing MIDI output port to use (substring match)")
	cmd.Flags().BoolVar(&createPort, "create-port", false, "Create a virtual MIDI output port")
	cmd.Flags().StringVar(&style, "style", "", "Initial playing style directive")
	cmd.Flags().StringVar(&monitorAddr, "monitor", "", "Serve session events over websocket on this address")
	cmd.Flags().BoolVar(&noMetronome, "no-metronome", false, "Disable the drum machine")
	return cmd
}

func applyFlags(cmd *cobra.Command, cfg *jam.Config) {
	if cmd.Flags().Changed("bpm") {
		cfg.BPM = bpm
	}
	if cmd.Flags().Changed("port") {
		cfg.MIDIPort = midiPort
		cfg.CreateVirtualPort = false
	}
	if cmd.Flags().Changed("create-port") {
		cfg.CreateVirtualPort = createPort
	}
	if cmd.Flags().Changed("style") {
		cfg.DefaultStyle = style
	}
	if cmd.Flags().Changed("monitor") {
		cfg.MonitorAddr = monitorAddr
	}
	if noMetronome {
		cfg.Metronome = false
	}
}

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio inputs and MIDI outputs",
		Run: func(cmd *cobra.Command, args []string) {
			setupLogger()

			fmt.Println("Audio Input Devices:")
			inputs, err := jam.ListInputDevices()
			if err != nil {
				jam.GetGlobalLogger().WithError(err).Fatal("failed to list audio devices")
			}
			for _, dev := range inputs {
				marker := ""
				if dev.IsDefault {
					marker = " (Default)"
				}
				fmt.Printf("  %d: %s%s - %d channels (%.0f Hz, %s)\n",
					dev.ID, dev.Name, marker, dev.MaxInputChannels, dev.DefaultSampleRate, dev.HostAPI)
			}

			fmt.Println("\nMIDI Output Ports:")
			ports, err := jam.ListMIDIOutputs()
			if err != nil {
				jam.GetGlobalLogger().WithError(err).Fatal("failed to list MIDI ports")
			}
			if len(ports) == 0 {
				fmt.Println("  (none - use --create-port for a virtual port)")
			}
			for i, name := range ports {
				fmt.Printf("  %d: %s\n", i, name)
			}
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := jam.NewConfig()
			cfg.PrintConfig()
			if issues := cfg.Validate(); len(issues) > 0 {
				fmt.Println("\nIssues:")
				for _, issue := range issues {
					fmt.Printf("  - %s\n", issue)
				}
			}
		},
	}
}
