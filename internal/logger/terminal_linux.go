//go:build linux

package logger

// ioctlReadTermios is TCGETS on Linux.
const ioctlReadTermios = 0x5401
