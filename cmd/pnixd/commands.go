package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/rkvdev/pnix/internal/kernel"
)

// registerDemoCommands installs the handful of trivial commands needed to
// exercise spawn/pipeline wiring end to end. None of these is a real shell
// utility — no flag grammars, no globbing — they exist purely to drive
// the core through pipelines, signals and cancellation by hand.
func registerDemoCommands(reg func(name string, fn kernel.TaskFunc)) {
	reg("echo", echoCmd)
	reg("rev", revCmd)
	reg("cat", catCmd)
	reg("sleep", sleepCmd)
	reg("yes", yesCmd)
}

// echoCmd writes its arguments (skipping argv[0]) space-joined to stdout,
// honoring a leading "-n" to suppress the trailing newline.
func echoCmd(p *kernel.Process) int32 {
	args := p.Args()[1:]
	newline := true
	if len(args) > 0 && args[0] == "-n" {
		newline = false
		args = args[1:]
	}

	out := p.Stdout()
	out.PutString(strings.Join(args, " "))
	if newline {
		out.Put('\n')
	}
	return 0
}

// revCmd reads every line from stdin and writes it back reversed, one
// line at a time, until stdin reaches end-of-stream.
func revCmd(p *kernel.Process) int32 {
	var buf []byte
	for {
		result := p.AwaitLine(p.QueueName(), p.Stdin(), &buf)
		if len(buf) > 0 {
			p.Stdout().PutString(reverseString(string(buf)))
			p.Stdout().Put('\n')
			buf = buf[:0]
		}
		if result == kernel.EndOfStream {
			return 0
		}
		if result == kernel.SignalInterrupt {
			return kernel.ExitInterrupted
		}
		if result == kernel.SignalTerminate {
			return kernel.ExitTerminated
		}
	}
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// catCmd copies stdin to stdout byte for byte until stdin closes.
func catCmd(p *kernel.Process) int32 {
	for {
		result := p.AwaitData(p.QueueName(), p.Stdin())
		switch result {
		case kernel.EndOfStream:
			return 0
		case kernel.SignalInterrupt:
			return kernel.ExitInterrupted
		case kernel.SignalTerminate:
			return kernel.ExitTerminated
		}
		for {
			got := p.Stdin().Get()
			if got.Status != kernel.StatusSuccess {
				break
			}
			p.Stdout().Put(got.Byte)
		}
	}
}

// sleepCmd yields for the duration named by argv[1] (seconds, as a plain
// integer or float parseable by strconv), then returns 0.
func sleepCmd(p *kernel.Process) int32 {
	args := p.Args()
	seconds := 1.0
	if len(args) > 1 {
		if v, err := strconv.ParseFloat(args[1], 64); err == nil {
			seconds = v
		}
	}

	result := p.YieldFor(p.QueueName(), time.Duration(seconds*float64(time.Second)))
	switch result {
	case kernel.SignalInterrupt:
		return kernel.ExitInterrupted
	case kernel.SignalTerminate:
		return kernel.ExitTerminated
	default:
		return 0
	}
}

// yesCmd writes "y\n" (or its arguments, space-joined) forever until
// signaled, one line every second scheduler sweep since each Yield resolves
// on its second poll — the classic "loops on yield() forever" task that exercises
// interrupt and force-kill cancellation.
func yesCmd(p *kernel.Process) int32 {
	line := "y"
	if args := p.Args(); len(args) > 1 {
		line = strings.Join(args[1:], " ")
	}
	for {
		result := p.Yield(p.QueueName())
		switch result {
		case kernel.SignalInterrupt:
			return kernel.ExitInterrupted
		case kernel.SignalTerminate:
			return kernel.ExitTerminated
		}
		p.Println(line)
	}
}
