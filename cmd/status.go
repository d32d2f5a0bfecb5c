package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BlissRoms-x86/drmfb-composer/internal/config"
	"github.com/BlissRoms-x86/drmfb-composer/internal/service"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the running composer daemon over D-Bus",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	conn, err := service.Connect(cfg.Service.SystemBus)
	if err != nil {
		return fmt.Errorf("failed to connect to D-Bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(service.BusName, service.ObjectPath)

	var outputs []service.OutputInfo
	if err := obj.Call(service.Interface+".ListOutputs", 0).Store(&outputs); err != nil {
		return fmt.Errorf("is the composer daemon running? %w", err)
	}

	if len(outputs) == 0 {
		fmt.Println("No outputs registered")
		return nil
	}

	for _, out := range outputs {
		state := "disconnected"
		if out.Connected {
			state = "connected"
		}
		class := "external"
		if out.Internal {
			class = "internal"
		}
		marker := ""
		if out.Primary {
			marker = " [primary]"
		}
		fmt.Printf("%s (connector %d): %s, %s%s\n", out.Name, out.ID, state, class, marker)
	}

	return nil
}
