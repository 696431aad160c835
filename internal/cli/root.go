// Package cli wires the command-line surface. Commands receive their
// collaborators through Dependencies rather than package globals so
// tests can substitute them.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aman-2709/WizScribe/internal/config"
)

type Dependencies struct {
	Config  *config.Config
	Log     zerolog.Logger
	Version string
	Commit  string
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wizscribe",
		Short: "Record meetings and produce speaker-attributed transcripts",
		Long: "Records the microphone and system audio into one synchronized file,\n" +
			"then transcribes each channel and merges them into a transcript where\n" +
			"every utterance is attributed to \"Me\" or \"Them\".",
	}

	rootCmd.Version = deps.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("wizscribe %s (%s)\n", deps.Version, deps.Commit))

	rootCmd.AddCommand(NewDevicesCmd(deps))
	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewTranscribeCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}
