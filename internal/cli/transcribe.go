package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aman-2709/WizScribe/internal/recorder"
	"github.com/aman-2709/WizScribe/internal/transcribe"
)

func NewTranscribeCmd(deps *Dependencies) *cobra.Command {
	var (
		micDevice   string
		sysDevice   string
		micCaptured bool
		sysCaptured bool
		outPath     string
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio.wav>",
		Short: "Transcribe a recording into a speaker-attributed transcript",
		Long: "Splits a recorded file into its mic and system channels, transcribes\n" +
			"each, and merges them into one transcript. Single-channel files and\n" +
			"sessions where a source was never captured take a plain mono path.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info := transcribe.SourceInfo{
				MicDevice:      micDevice,
				SystemDevice:   sysDevice,
				MicCaptured:    micCaptured,
				SystemCaptured: sysCaptured,
			}
			out, err := runTranscription(deps, args[0], info)
			if err != nil {
				return err
			}
			return writeOutcome(out, outPath)
		},
	}

	cmd.Flags().StringVar(&micDevice, "mic-device", "", "Microphone device name for transcript metadata")
	cmd.Flags().StringVar(&sysDevice, "system-device", "", "System-audio device name for transcript metadata")
	cmd.Flags().BoolVar(&micCaptured, "mic-captured", true, "Whether the mic channel carries real audio")
	cmd.Flags().BoolVar(&sysCaptured, "system-captured", true, "Whether the system channel carries real audio")
	cmd.Flags().StringVar(&outPath, "output", "", "Write the transcript to this file instead of stdout")

	return cmd
}

// transcribeResult runs transcription for a freshly recorded session and
// writes the transcript next to the audio file.
func transcribeResult(deps *Dependencies, result *recorder.Result) error {
	info := transcribe.SourceInfo{
		MicDevice:      result.MicDevice,
		SystemDevice:   result.SystemDevice,
		MicCaptured:    result.MicCaptured,
		SystemCaptured: result.SystemCaptured,
	}
	out, err := runTranscription(deps, result.OutputPath, info)
	if err != nil {
		return err
	}

	path := strings.TrimSuffix(result.OutputPath, ".wav") + transcriptSuffix(out)
	if err := writeOutcome(out, path); err != nil {
		return err
	}
	fmt.Printf("Transcript written to %s\n", path)
	return nil
}

func runTranscription(deps *Dependencies, audioPath string, info transcribe.SourceInfo) (*transcribe.Outcome, error) {
	modelPath := deps.Config.ResolveModelPath()
	engine, err := transcribe.NewWhisperEngine(modelPath,
		transcribe.WithLanguage(deps.Config.Whisper.Language),
		transcribe.WithThreads(deps.Config.Whisper.Threads),
		transcribe.WithLogger(deps.Log),
	)
	if err != nil {
		if errors.Is(err, transcribe.ErrModelUnavailable) {
			return nil, fmt.Errorf("no speech model at %s; download one and set whisper.model_path (recording is preserved, transcription can be retried)", modelPath)
		}
		return nil, err
	}
	defer engine.Close()

	orch := transcribe.NewOrchestrator(engine,
		transcribe.WithOverlapTolerance(deps.Config.Transcript.OverlapToleranceMs),
		transcribe.WithOrchestratorLogger(deps.Log),
	)
	return orch.TranscribeDual(context.Background(), audioPath, info)
}

func transcriptSuffix(out *transcribe.Outcome) string {
	if out.Mode == transcribe.ModeDual {
		return ".transcript.json"
	}
	return ".transcript.txt"
}

func writeOutcome(out *transcribe.Outcome, path string) error {
	var content string
	if out.Mode == transcribe.ModeDual {
		encoded, err := out.Transcript.Encode()
		if err != nil {
			return err
		}
		content = encoded
	} else {
		content = out.MonoText
	}

	if path == "" {
		fmt.Println(content)
		return nil
	}
	return os.WriteFile(path, []byte(content+"\n"), 0644)
}
