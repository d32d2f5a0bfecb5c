package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BlissRoms-x86/drmfb-composer/internal/config"
	"github.com/BlissRoms-x86/drmfb-composer/internal/kms"
)

var outputsCmd = &cobra.Command{
	Use:   "outputs",
	Short: "List the display outputs of the DRM device",
	RunE:  runOutputs,
}

func init() {
	outputsCmd.Flags().StringVarP(&devicePath, "device", "d", "", "DRM device node")
}

func runOutputs(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if devicePath != "" {
		cfg.Device.Path = devicePath
	}

	card, err := kms.Open(cfg.Device.Path)
	if err != nil {
		return fmt.Errorf("failed to open DRM device: %w", err)
	}
	defer card.Close()

	res, err := card.Resources()
	if err != nil {
		return fmt.Errorf("failed to get DRM mode resources: %w", err)
	}

	fmt.Printf("%s: %d CRTCs, %d connectors\n\n", card.Path(), len(res.Crtcs), len(res.Connectors))

	for _, id := range res.Connectors {
		conn, err := card.Connector(id)
		if err != nil {
			fmt.Printf("connector %d: probe failed: %v\n", id, err)
			continue
		}

		class := "external"
		if kms.TypeInternal(conn.Type) {
			class = "internal"
		}
		fmt.Printf("%s (connector %d): %s, %s, %d modes\n",
			kms.ConnectorName(conn.Type, conn.TypeID), conn.ID, conn.Status, class, len(conn.Modes))
		for _, mode := range conn.Modes {
			marker := ""
			if mode.Type&kms.ModeTypePreferred != 0 {
				marker = " (preferred)"
			}
			fmt.Printf("  %s %dx%d@%d%s\n", mode.Name, mode.Width, mode.Height, mode.Refresh, marker)
		}
	}

	return nil
}
