package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BlissRoms-x86/drmfb-composer/internal/config"
	"github.com/BlissRoms-x86/drmfb-composer/internal/device"
	"github.com/BlissRoms-x86/drmfb-composer/internal/hotplug"
	"github.com/BlissRoms-x86/drmfb-composer/internal/kms"
	"github.com/BlissRoms-x86/drmfb-composer/internal/logger"
	"github.com/BlissRoms-x86/drmfb-composer/internal/service"
)

var devicePath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the display device manager",
	Long: `Run the display device manager: open the DRM device, enumerate its
connectors, register the composer service on D-Bus and keep the output
state fresh until terminated.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&devicePath, "device", "d", "", "DRM device node")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if devicePath != "" {
		cfg.Device.Path = devicePath
	}

	card, err := kms.Open(cfg.Device.Path)
	if err != nil {
		return fmt.Errorf("failed to open DRM device: %w", err)
	}
	defer card.Close()

	mgr := device.NewManager(card)
	if err := mgr.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize display manager: %w", err)
	}

	monitor := hotplug.New(hotplug.Options{
		Netlink:      cfg.Hotplug.Netlink,
		PollInterval: cfg.Hotplug.PollInterval,
	}, mgr.Update)
	mgr.SetMonitor(monitor)
	defer monitor.Stop()

	conn, err := service.Connect(cfg.Service.SystemBus)
	if err != nil {
		return fmt.Errorf("failed to connect to D-Bus: %w", err)
	}
	defer conn.Close()

	svc, err := service.New(conn, mgr)
	if err != nil {
		return fmt.Errorf("failed to register composer service: %w", err)
	}
	defer svc.Close()

	mgr.Enable(svc)
	defer mgr.Disable()

	logger.Infof("Managing %s, waiting for events", card.Path())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Infof("Received %v, shutting down", s)
	return nil
}
