// Command kozosboot is the demo boot image for the kernel: it reproduces
// the startup sequence of original_source/src/12/os/main.c — spawn the
// console driver and the command thread, drop the idle thread's own
// priority, then park — against the in-process Go kernel instead of H8
// hardware.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bobchin/kozos/internal/logging"
	"github.com/bobchin/kozos/internal/platform"
	"github.com/bobchin/kozos/internal/ttable"

	kozos "github.com/bobchin/kozos"
)

func main() {
	var (
		verbose  = pflag.BoolP("verbose", "v", false, "enable debug-level kernel logging")
		mailbox1 = pflag.Int("msgbox1", 0, "mailbox ID the console driver listens on")
	)
	pflag.Parse()

	logLevel := logging.LevelInfo
	if *verbose {
		logLevel = logging.LevelDebug
	}
	logger := logging.NewLogger(&logging.Config{
		Level:  logLevel,
		Format: "text",
		Output: os.Stderr,
	})
	logging.SetDefault(logger)

	opts := kozos.DefaultOptions()
	opts.Console = platform.NewStdConsole(os.Stdout)
	opts.Logger = logger

	opts.Console.Puts("kozos boot succeed!")

	k := kozos.Boot(func(h ttable.ThreadHandle, argc int, argv []string) {
		thread := h.(*kozos.Thread)
		thread.Run("consdrv", 1, consoleDriver(*mailbox1), 0, nil)
		thread.Run("command", 8, commandLoop(*mailbox1), 0, nil)

		// Drop priority and let the scheduler favor the drivers/command
		// thread from here on, the Go-native analogue of "INTR_ENABLE;
		// sleep" in the original's idle loop. Unlike SLEEP, WAIT never
		// detaches the caller — idle stays perpetually ready at the
		// lowest priority, exactly as the original's idle loop always
		// stays runnable between "sleep" instructions, so the ready set
		// never goes empty once the drivers above block or park.
		thread.ChPri(15)
		for {
			thread.Wait()
		}
	}, opts)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-k.Down():
		fmt.Fprintln(os.Stderr, "kozos: system down")
		os.Exit(1)
	case <-sigCh:
		fmt.Fprintln(os.Stderr, "kozos: shutdown requested")
	}
}

// consoleDriver plays the role of consdrv_main: it blocks on the console's
// input mailbox and echoes each line it receives, the minimal stand-in for
// the original's interrupt-fed receive buffer.
func consoleDriver(mailboxID int) ttable.ThreadFunc {
	return func(h ttable.ThreadHandle, argc int, argv []string) {
		thread := h.(*kozos.Thread)
		for {
			d := thread.Recv(mailboxID)
			fmt.Printf("console: %s", string(d.Payload))
		}
	}
}

// commandLoop sends a one-shot greeting to the console mailbox and then
// waits forever, standing in for the original's interactive command shell.
func commandLoop(mailboxID int) ttable.ThreadFunc {
	return func(h ttable.ThreadHandle, argc int, argv []string) {
		thread := h.(*kozos.Thread)
		thread.Send(mailboxID, []byte("kozos ready\n"))
		thread.Sleep()
	}
}
