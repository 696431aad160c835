package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/cobra"

	"github.com/aman-2709/WizScribe/internal/device"
)

func NewDevicesCmd(deps *Dependencies) *cobra.Command {
	var roleFlag string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long:  "Enumerates capture-capable audio devices and their detected role.\nMonitor-class devices carry system audio; everything else is treated as a microphone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var roleFilter *device.Role
			switch roleFlag {
			case "":
			case "microphone":
				r := device.RoleMicrophone
				roleFilter = &r
			case "monitor":
				r := device.RoleMonitor
				roleFilter = &r
			default:
				return fmt.Errorf("unknown role %q (want microphone or monitor)", roleFlag)
			}

			if err := portaudio.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize audio subsystem: %w", err)
			}
			defer portaudio.Terminate()

			catalog := device.NewCatalog(nil)
			devices, err := catalog.List(roleFilter)
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("No capture devices found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tROLE\tNAME")
			for _, d := range devices {
				name := d.Name
				if d.Default {
					name += " (default)"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", d.Index, d.Role, name)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&roleFlag, "role", "", "Filter by role: microphone or monitor")

	return cmd
}
