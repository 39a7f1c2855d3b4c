// scantest moves one scanner axis and shows its position until it arrives.
//
// Usage:
//
//	scantest <driver> <clock counter> <ao channel> <target nm>
//
// e.g. scantest mock Dev1/ctr0 Dev1/ao0 2500
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/theckman/yacspin"

	"github.com/nasa-jpl/golab-daqmx/daqmx"
	"github.com/nasa-jpl/golab-daqmx/scanner"
	"github.com/nasa-jpl/golab-daqmx/sharedclock"
)

func main() {
	args := os.Args[1:]
	if len(args) != 4 {
		log.Fatal("usage: scantest <driver> <clock counter> <ao channel> <target nm>")
	}
	target, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		log.Fatal(err)
	}
	drv, err := daqmx.Open(args[0])
	if err != nil {
		log.Fatal(err)
	}
	coord := sharedclock.New(drv, daqmx.NewCatalog(drv), args[1], 1e9/float64(scanner.DefaultStepTime.Nanoseconds()))
	defer coord.Close()
	ctl, err := scanner.New(coord, scanner.Axis{Name: "X", Channel: args[2]})
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coord.Run(ctx)

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " ",
		SuffixAutoColon:   true,
		Message:           "starting",
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		log.Fatal(err)
	}
	spinner.Suffix(fmt.Sprintf(" X to %g nm", target))
	spinner.Start()
	start := time.Now()
	if err := ctl.MoveAbs("X", target); err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		os.Exit(1)
	}
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for range tick.C {
		pos, err := ctl.GetPos("X")
		if err != nil {
			spinner.StopFailMessage(err.Error())
			spinner.StopFail()
			os.Exit(1)
		}
		spinner.Message(fmt.Sprintf("%.1f nm", pos))
		in, _ := ctl.GetInPosition("X")
		if in {
			spinner.StopMessage(fmt.Sprintf("%.1f nm in %v", pos, time.Since(start).Round(time.Millisecond)))
			spinner.Stop()
			return
		}
	}
}
