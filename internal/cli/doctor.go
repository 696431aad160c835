package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/cobra"

	"github.com/aman-2709/WizScribe/internal/config"
	"github.com/aman-2709/WizScribe/internal/device"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := true

			if err := portaudio.Initialize(); err != nil {
				check("Audio subsystem", false, err.Error())
				return fmt.Errorf("audio subsystem unavailable")
			}
			defer portaudio.Terminate()
			check("Audio subsystem", true, "initialized")

			catalog := device.NewCatalog(nil)
			mic, system, err := catalog.Defaults()
			if err != nil {
				check("Device enumeration", false, err.Error())
				ok = false
			} else {
				if mic != nil {
					info, _ := catalog.Info(*mic)
					check("Microphone", true, info.Name)
				} else {
					check("Microphone", false, "no input device found")
					ok = false
				}
				if system != nil {
					info, _ := catalog.Info(*system)
					check("System audio", true, info.Name)
				} else {
					check("System audio", false, "no monitor/loopback device found; recordings will be mic-only")
				}
			}

			modelPath := deps.Config.ResolveModelPath()
			if _, err := os.Stat(modelPath); err == nil {
				check("Speech model", true, modelPath)
			} else {
				check("Speech model", false, fmt.Sprintf("not found, expected at %s", modelPath))
				ok = false
			}

			recordingsDir := config.RecordingsPath()
			if err := checkWritable(recordingsDir); err != nil {
				check("Recordings directory", false, err.Error())
				ok = false
			} else {
				check("Recordings directory", true, recordingsDir)
			}

			if ok {
				fmt.Println("\nAll prerequisites met. Ready to record.")
			} else {
				fmt.Println("\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}

// checkWritable verifies the directory exists (creating it if needed)
// and accepts a write.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	probe := filepath.Join(dir, ".wizscribe-doctor")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	os.Remove(probe)
	return nil
}

func check(name string, ok bool, detail string) {
	mark := "✗"
	if ok {
		mark = "✓"
	}
	fmt.Printf("%s %-22s %s\n", mark, name, detail)
}
