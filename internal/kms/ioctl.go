package kms

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux ioctl request encoding:
//
//	dir:2 | size:14 | type:8 | nr:8
const (
	iocWrite = 1
	iocRead  = 2

	iocNrShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	// DRM ioctl type ('d')
	drmIoctlBase = 0x64
)

func iocCode(dir, size uint16, nr uint8) uintptr {
	return uintptr(dir)<<iocDirShift |
		uintptr(size)<<iocSizeShift |
		uintptr(drmIoctlBase)<<iocTypeShift |
		uintptr(nr)<<iocNrShift
}

var (
	// DRM_IOWR(0xA0, struct drm_mode_card_res)
	ioctlModeGetResources = iocCode(iocRead|iocWrite,
		uint16(unsafe.Sizeof(modeCardRes{})), 0xA0)

	// DRM_IOWR(0xA7, struct drm_mode_get_connector)
	ioctlModeGetConnector = iocCode(iocRead|iocWrite,
		uint16(unsafe.Sizeof(modeGetConnector{})), 0xA7)
)

func ioctl(f *os.File, request uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), request, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
