package kms

import "fmt"

// Status is the connection state of a connector as reported by the kernel.
type Status uint32

const (
	StatusConnected    Status = 1
	StatusDisconnected Status = 2
	StatusUnknown      Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connected reports whether the status counts as connected.
func (s Status) Connected() bool {
	return s == StatusConnected
}

// ModeTypePreferred marks the mode the kernel considers preferred
// (DRM_MODE_TYPE_PREFERRED).
const ModeTypePreferred uint32 = 1 << 3

// Connector types from drm_mode.h.
const (
	ConnectorUnknown     uint32 = 0
	ConnectorVGA         uint32 = 1
	ConnectorDVII        uint32 = 2
	ConnectorDVID        uint32 = 3
	ConnectorDVIA        uint32 = 4
	ConnectorComposite   uint32 = 5
	ConnectorSVideo      uint32 = 6
	ConnectorLVDS        uint32 = 7
	ConnectorComponent   uint32 = 8
	Connector9PinDIN     uint32 = 9
	ConnectorDisplayPort uint32 = 10
	ConnectorHDMIA       uint32 = 11
	ConnectorHDMIB       uint32 = 12
	ConnectorTV          uint32 = 13
	ConnectorEDP         uint32 = 14
	ConnectorVirtual     uint32 = 15
	ConnectorDSI         uint32 = 16
	ConnectorDPI         uint32 = 17
	ConnectorWriteback   uint32 = 18
	ConnectorSPI         uint32 = 19
	ConnectorUSB         uint32 = 20
)

var connectorTypeNames = map[uint32]string{
	ConnectorUnknown:     "Unknown",
	ConnectorVGA:         "VGA",
	ConnectorDVII:        "DVI-I",
	ConnectorDVID:        "DVI-D",
	ConnectorDVIA:        "DVI-A",
	ConnectorComposite:   "Composite",
	ConnectorSVideo:      "SVIDEO",
	ConnectorLVDS:        "LVDS",
	ConnectorComponent:   "Component",
	Connector9PinDIN:     "DIN",
	ConnectorDisplayPort: "DP",
	ConnectorHDMIA:       "HDMI-A",
	ConnectorHDMIB:       "HDMI-B",
	ConnectorTV:          "TV",
	ConnectorEDP:         "eDP",
	ConnectorVirtual:     "Virtual",
	ConnectorDSI:         "DSI",
	ConnectorDPI:         "DPI",
	ConnectorWriteback:   "Writeback",
	ConnectorSPI:         "SPI",
	ConnectorUSB:         "USB",
}

// ConnectorTypeName returns the kernel's name for a connector type.
func ConnectorTypeName(typ uint32) string {
	if name, ok := connectorTypeNames[typ]; ok {
		return name
	}
	return "Unknown"
}

// ConnectorName builds the familiar "eDP-1" style name from a connector's
// type and per-type index.
func ConnectorName(typ, typeID uint32) string {
	return fmt.Sprintf("%s-%d", ConnectorTypeName(typ), typeID)
}

// TypeInternal reports whether a connector type belongs to a built-in
// panel rather than an external port.
func TypeInternal(typ uint32) bool {
	switch typ {
	case ConnectorLVDS, ConnectorEDP, ConnectorDSI, ConnectorDPI:
		return true
	}
	return false
}
