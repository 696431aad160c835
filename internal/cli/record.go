package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
	"github.com/spf13/cobra"

	"github.com/aman-2709/WizScribe/internal/capture"
	"github.com/aman-2709/WizScribe/internal/config"
	"github.com/aman-2709/WizScribe/internal/device"
	"github.com/aman-2709/WizScribe/internal/recorder"
)

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var (
		meetingID  string
		micIndex   int
		sysIndex   int
		outputDir  string
		transcribe bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record mic and system audio into one file",
		Long: "Starts a dual-source recording session. Type pause, resume or stop\n" +
			"(or press Ctrl+C) to control it. If the system-audio device is\n" +
			"unavailable the session degrades to mic-only rather than failing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if meetingID == "" {
				meetingID = uuid.NewString()
			}
			if outputDir == "" {
				outputDir = config.RecordingsPath()
			}

			if err := portaudio.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize audio subsystem: %w", err)
			}
			defer portaudio.Terminate()

			rec := recorder.New(recorder.Config{
				Opener: &capture.PortAudioOpener{
					QueueCapacity: deps.Config.Audio.QueueCapacity,
					Log:           deps.Log,
				},
				Devices:    device.NewCatalog(nil),
				SampleRate: deps.Config.Audio.SampleRate,
				OutputDir:  outputDir,
				Logger:     deps.Log,
			})

			info, err := rec.Start(meetingID, deviceIndex(micIndex, deps.Config.Audio.MicDeviceIndex), deviceIndex(sysIndex, deps.Config.Audio.SystemDeviceIndex))
			if err != nil {
				return err
			}

			fmt.Printf("Recording %s\n", info.OutputPath)
			fmt.Printf("  mic:    %s\n", deviceLabel(info.MicActive, info.MicDevice))
			fmt.Printf("  system: %s\n", deviceLabel(info.SystemActive, info.SystemDevice))
			if !info.SystemActive {
				fmt.Println("  system audio unavailable, recording mic only")
			}
			fmt.Println("Commands: pause, resume, status, stop, abort (Ctrl+C stops)")

			go func() {
				for e := range rec.Events() {
					if e.RecordingContinues {
						fmt.Printf("warning: %s source failed (%s), recording continues\n", e.Source, e.Message)
					} else {
						fmt.Printf("error: all audio sources failed, recording stopped\n")
					}
				}
			}()

			result, err := controlLoop(rec)
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Println("Recording aborted, output discarded")
				return nil
			}

			fmt.Printf("Saved %s (%.1fs, mic=%v system=%v)\n",
				result.OutputPath, result.DurationSecs, result.MicCaptured, result.SystemCaptured)
			if result.PausedSecs > 0 {
				fmt.Printf("  %.1fs of pause time excluded\n", result.PausedSecs)
			}

			if !transcribe {
				return nil
			}
			return transcribeResult(deps, result)
		},
	}

	cmd.Flags().StringVar(&meetingID, "meeting", "", "Meeting identifier (default: generated)")
	cmd.Flags().IntVar(&micIndex, "mic", -1, "Microphone device index (default: auto-detect)")
	cmd.Flags().IntVar(&sysIndex, "system", -1, "System-audio device index (default: auto-detect)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for the session file")
	cmd.Flags().BoolVar(&transcribe, "transcribe", false, "Transcribe after stopping")

	return cmd
}

// controlLoop runs until the session ends. Returns a nil result when the
// session was aborted or torn down by a fatal source failure.
func controlLoop(rec *recorder.Recorder) (*recorder.Result, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.ToLower(strings.TrimSpace(scanner.Text()))
		}
		close(lines)
	}()

	for {
		select {
		case <-sigCh:
			return stopSession(rec)

		case line, ok := <-lines:
			if !ok {
				return stopSession(rec)
			}
			switch line {
			case "":
			case "pause":
				if err := rec.Pause(); err != nil {
					fmt.Println(err)
				} else {
					fmt.Println("Paused")
				}
			case "resume":
				if err := rec.Resume(); err != nil {
					fmt.Println(err)
				} else {
					fmt.Println("Resumed")
				}
			case "status":
				printStatus(rec.Status())
			case "stop":
				return stopSession(rec)
			case "abort":
				if err := rec.Abort(); err != nil {
					fmt.Println(err)
					continue
				}
				return nil, nil
			default:
				fmt.Printf("unknown command %q\n", line)
			}
		}
	}
}

func stopSession(rec *recorder.Recorder) (*recorder.Result, error) {
	result, err := rec.Stop()
	if err != nil {
		var invalid *recorder.InvalidTransitionError
		if errors.As(err, &invalid) {
			// The session already ended, usually a fatal source failure.
			return rec.LastResult(), nil
		}
		return nil, err
	}
	return result, nil
}

func printStatus(st recorder.Status) {
	fmt.Printf("State: %s", st.State)
	if st.MeetingID != "" {
		fmt.Printf(" (meeting %s)", st.MeetingID)
	}
	fmt.Println()
	fmt.Printf("  mic:    %s\n", sourceStatus(st.MicActive, st.MicDevice))
	fmt.Printf("  system: %s\n", sourceStatus(st.SystemActive, st.SystemDevice))
}

func sourceStatus(active bool, name string) string {
	if active {
		return fmt.Sprintf("%s (capturing)", name)
	}
	if name == "" || name == "Not available" {
		return "(none)"
	}
	return fmt.Sprintf("%s (failed)", name)
}

func deviceIndex(flag int, configured *int) *int {
	if flag >= 0 {
		return &flag
	}
	return configured
}

func deviceLabel(active bool, name string) string {
	if !active {
		return "(none)"
	}
	return name
}
