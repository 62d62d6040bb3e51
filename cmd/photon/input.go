package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/photon/internal/client"
	"github.com/danmuck/photon/internal/hittest"
)

type commandKind int

const (
	cmdClick commandKind = iota
	cmdWheel
	cmdSleep
)

// inputCommand is one line of an input script:
//
//	click X Y
//	wheel X Y DX DY [line|pixel]
//	sleep DURATION
type inputCommand struct {
	kind  commandKind
	x, y  float64
	delta hittest.WheelDelta
	sleep time.Duration
	line  int
}

func parseScript(r io.Reader) ([]inputCommand, error) {
	var out []inputCommand
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, err := parseCommand(strings.Fields(line))
		if err != nil {
			return nil, fmt.Errorf("script line %d: %w", lineNo, err)
		}
		cmd.line = lineNo
		out = append(out, cmd)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseCommand(fields []string) (inputCommand, error) {
	switch fields[0] {
	case "click":
		if len(fields) != 3 {
			return inputCommand{}, fmt.Errorf("click takes X Y")
		}
		nums, err := parseFloats(fields[1:])
		if err != nil {
			return inputCommand{}, err
		}
		return inputCommand{kind: cmdClick, x: nums[0], y: nums[1]}, nil
	case "wheel":
		if len(fields) != 5 && len(fields) != 6 {
			return inputCommand{}, fmt.Errorf("wheel takes X Y DX DY [line|pixel]")
		}
		nums, err := parseFloats(fields[1:5])
		if err != nil {
			return inputCommand{}, err
		}
		delta := hittest.LineDelta(nums[2], nums[3])
		if len(fields) == 6 {
			switch fields[5] {
			case "line":
			case "pixel":
				delta = hittest.PixelDelta(nums[2], nums[3])
			default:
				return inputCommand{}, fmt.Errorf("unknown delta unit %q", fields[5])
			}
		}
		return inputCommand{kind: cmdWheel, x: nums[0], y: nums[1], delta: delta}, nil
	case "sleep":
		if len(fields) != 2 {
			return inputCommand{}, fmt.Errorf("sleep takes DURATION")
		}
		d, err := time.ParseDuration(fields[1])
		if err != nil {
			return inputCommand{}, err
		}
		return inputCommand{kind: cmdSleep, sleep: d}, nil
	default:
		return inputCommand{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", f)
		}
		out[i] = v
	}
	return out, nil
}

// runScript feeds cmds to ctrl in order. It stops early when ctx is done or
// the session ends.
func runScript(ctx context.Context, ctrl *client.Controller, done <-chan struct{}, cmds []inputCommand) error {
	for _, cmd := range cmds {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		default:
		}
		var err error
		switch cmd.kind {
		case cmdClick:
			_, err = ctrl.MouseClick(ctx, cmd.x, cmd.y)
		case cmdWheel:
			_, err = ctrl.MouseWheel(ctx, cmd.x, cmd.y, cmd.delta)
		case cmdSleep:
			timer := time.NewTimer(cmd.sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-done:
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
		if err != nil {
			return fmt.Errorf("script line %d: %w", cmd.line, err)
		}
	}
	return nil
}
