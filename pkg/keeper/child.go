package keeper

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/arenillas/krenewd/pkg/renew"
)

// Child is a supervised command. The keeper forwards the command's standard
// streams, watches for its exit, and propagates its exit status.
type Child struct {
	cmd  *exec.Cmd
	done chan int

	mu     sync.Mutex
	exited bool
}

// StartChild spawns the command with inherited standard streams. The
// command sees the environment as of the call, including the KRB5CCNAME
// set by cache isolation.
func StartChild(argv []string) (*Child, error) {
	if len(argv) == 0 {
		return nil, errors.New("no command given")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("run command %s: %w", argv[0], err)
	}

	c := &Child{cmd: cmd, done: make(chan int, 1)}
	go func() {
		err := cmd.Wait()
		c.mu.Lock()
		c.exited = true
		c.mu.Unlock()
		c.done <- exitStatus(err)
	}()
	return c, nil
}

// Pid returns the command's process ID.
func (c *Child) Pid() int {
	return c.cmd.Process.Pid
}

// Running reports whether the command has not yet exited.
func (c *Child) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.exited
}

// Signal delivers a signal to the command.
func (c *Child) Signal(sig os.Signal) error {
	return c.cmd.Process.Signal(sig)
}

// Done yields the command's exit status once, after it exits.
func (c *Child) Done() <-chan int {
	return c.done
}

var _ renew.ChildProcess = (*Child)(nil)

// exitStatus maps a Wait error to the shell exit-status convention:
// 128+signal for a signal death, the command's own status otherwise.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		return 1
	}
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ee.ExitCode()
}
