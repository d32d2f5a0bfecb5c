// Package service exposes the device manager on D-Bus and relays output
// availability changes to it, acting as the composition-facing surface
// of the daemon.
package service

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/BlissRoms-x86/drmfb-composer/internal/device"
	"github.com/BlissRoms-x86/drmfb-composer/internal/logger"
)

const (
	// BusName is the well-known name the daemon claims.
	BusName = "org.blissroms.DrmComposer1"
	// ObjectPath is where the composer object lives.
	ObjectPath dbus.ObjectPath = "/org/blissroms/DrmComposer1"
	// Interface is the composer's D-Bus interface.
	Interface = "org.blissroms.DrmComposer1"
)

// OutputInfo is the wire representation of one output (signature
// "(usbbb)").
type OutputInfo struct {
	ID        uint32
	Name      string
	Connected bool
	Internal  bool
	Primary   bool
}

// Manager is the slice of the device manager the service drives.
type Manager interface {
	Outputs() []device.Output
	ConnectedOutput(id uint32) device.Output
	Primary() uint32
	Update()
	ReportExternal()
}

// Service is the exported D-Bus object. It also implements
// device.Callback so hotplug reports turn into OutputChanged signals.
type Service struct {
	conn *dbus.Conn
	mgr  Manager
}

// Connect picks the requested bus for the service.
func Connect(systemBus bool) (*dbus.Conn, error) {
	if systemBus {
		return dbus.ConnectSystemBus()
	}
	return dbus.ConnectSessionBus()
}

// New exports the composer object on conn and claims the well-known
// name.
func New(conn *dbus.Conn, mgr Manager) (*Service, error) {
	s := &Service{conn: conn, mgr: mgr}

	methods := map[string]interface{}{
		"ListOutputs":        s.listOutputs,
		"GetOutput":          s.getOutput,
		"GetPrimary":         s.getPrimary,
		"AcknowledgePrimary": s.acknowledgePrimary,
		"Refresh":            s.refresh,
	}
	if err := conn.ExportMethodTable(methods, ObjectPath, Interface); err != nil {
		return nil, fmt.Errorf("export composer object: %w", err)
	}
	if err := conn.Export(introspect.NewIntrospectable(introspectNode()), ObjectPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("export introspection data: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("request bus name %s: %w", BusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("bus name %s already taken", BusName)
	}

	logger.Infof("Registered %s on D-Bus", BusName)
	return s, nil
}

// OnHotplug implements device.Callback by broadcasting the change.
func (s *Service) OnHotplug(id uint32, connected bool) {
	if err := s.conn.Emit(ObjectPath, Interface+".OutputChanged", id, connected); err != nil {
		logger.Warnf("Failed to emit OutputChanged for connector %d: %v", id, err)
	}
}

// Close releases the well-known name. The bus connection is left to the
// caller.
func (s *Service) Close() error {
	_, err := s.conn.ReleaseName(BusName)
	return err
}

func (s *Service) listOutputs() ([]OutputInfo, *dbus.Error) {
	return CollectOutputs(s.mgr), nil
}

func (s *Service) getOutput(id uint32) (OutputInfo, *dbus.Error) {
	out := s.mgr.ConnectedOutput(id)
	if out == nil {
		return OutputInfo{}, dbus.MakeFailedError(fmt.Errorf("connector %d is not connected", id))
	}
	return OutputInfo{
		ID:        out.ID(),
		Name:      out.Name(),
		Connected: true,
		Internal:  out.Internal(),
		Primary:   out.ID() == s.mgr.Primary(),
	}, nil
}

func (s *Service) getPrimary() (uint32, *dbus.Error) {
	return s.mgr.Primary(), nil
}

func (s *Service) acknowledgePrimary() *dbus.Error {
	s.mgr.ReportExternal()
	return nil
}

func (s *Service) refresh() *dbus.Error {
	s.mgr.Update()
	return nil
}

// CollectOutputs builds the wire representation of the manager's
// registry in registry order.
func CollectOutputs(mgr Manager) []OutputInfo {
	primary := mgr.Primary()
	outputs := mgr.Outputs()
	infos := make([]OutputInfo, 0, len(outputs))
	for _, out := range outputs {
		infos = append(infos, OutputInfo{
			ID:        out.ID(),
			Name:      out.Name(),
			Connected: out.Connected(),
			Internal:  out.Internal(),
			Primary:   out.ID() == primary && primary != 0,
		})
	}
	return infos
}

func introspectNode() *introspect.Node {
	return &introspect.Node{
		Name: string(ObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: Interface,
				Methods: []introspect.Method{
					{
						Name: "ListOutputs",
						Args: []introspect.Arg{
							{Name: "outputs", Type: "a(usbbb)", Direction: "out"},
						},
					},
					{
						Name: "GetOutput",
						Args: []introspect.Arg{
							{Name: "connector", Type: "u", Direction: "in"},
							{Name: "output", Type: "(usbbb)", Direction: "out"},
						},
					},
					{
						Name: "GetPrimary",
						Args: []introspect.Arg{
							{Name: "connector", Type: "u", Direction: "out"},
						},
					},
					{Name: "AcknowledgePrimary"},
					{Name: "Refresh"},
				},
				Signals: []introspect.Signal{
					{
						Name: "OutputChanged",
						Args: []introspect.Arg{
							{Name: "connector", Type: "u"},
							{Name: "connected", Type: "b"},
						},
					},
				},
			},
		},
	}
}
