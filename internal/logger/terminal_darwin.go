//go:build darwin

package logger

import "syscall"

// ioctlReadTermios is TIOCGETA on macOS.
const ioctlReadTermios = syscall.TIOCGETA
