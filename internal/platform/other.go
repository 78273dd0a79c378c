//go:build !windows && !linux && !darwin

package platform

import "context"

type unsupportedForeground struct{}

func (unsupportedForeground) ForegroundProcess(context.Context) (ProcessRef, error) {
	return ProcessRef{}, ErrUnsupported
}

func (unsupportedForeground) ProcessName(context.Context, ProcessRef) (string, error) {
	return "", ErrUnsupported
}

func newNative(Options) *Platform {
	return &Platform{
		Foreground: unsupportedForeground{},
		Resolver:   unsupportedForeground{},
		Hostnames:  unsupportedHostnames{},
	}
}
