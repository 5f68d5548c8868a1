//go:build !linux

package sensors

func nameThread(name string) error { return nil }
