// Command glasstokey-replay drives the GlassToKey engine against a
// recorded ATPCAP capture file, either to inspect what it dispatches or to
// check that replaying it still reproduces a previously recorded
// fingerprint. It never talks to real hardware or an OS input-injection
// API; capture files are the only input.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"

	glasstokey "github.com/glasstokey/glasstokey"
)

func main() {
	var (
		replayPath  string
		fixturePath string
		layoutPath  string
		selfTest    bool
	)
	flag.StringVar(&replayPath, "replay", "", "path to an ATPCAP capture file to replay")
	flag.StringVar(&fixturePath, "fixture", "", "path to a fixture file with the expected replay fingerprint")
	flag.StringVar(&layoutPath, "layout", "", "optional path to a layout YAML document to install before replaying")
	flag.BoolVar(&selfTest, "self-test", false, "run the engine's built-in determinism self-check")
	flag.Parse()

	switch {
	case selfTest:
		os.Exit(runSelfTest())
	case replayPath != "":
		os.Exit(runReplay(replayPath, fixturePath, layoutPath))
	default:
		fmt.Fprintln(os.Stderr, "usage: glasstokey-replay --replay <path> [--fixture <path>] [--layout <path>]")
		fmt.Fprintln(os.Stderr, "   or: glasstokey-replay --self-test")
		os.Exit(1)
	}
}

// Fixture is the expected-outcome file for --fixture: the fingerprint and
// frame count a known-good replay of the same capture produced.
type Fixture struct {
	Fingerprint string `json:"fingerprint"`
	Frames      uint64 `json:"frames"`
}

func runReplay(replayPath, fixturePath, layoutPath string) int {
	colorize := term.IsTerminal(os.Stdout.Fd())

	f, err := os.Open(replayPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, statusLine(colorize, false, fmt.Sprintf("open %s: %v", replayPath, err)))
		return 1
	}
	defer f.Close()

	cr, err := glasstokey.OpenCaptureReader(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, statusLine(colorize, false, err.Error()))
		return 1
	}

	log := glasstokey.NewLogger()
	egress := &glasstokey.RecordingEgress{}
	engine := glasstokey.NewEngine(glasstokey.DefaultConfig(), egress, glasstokey.NoopDictation{}, glasstokey.NoopHaptic{}, log)

	if layoutPath != "" {
		if err := installLayout(engine, layoutPath); err != nil {
			fmt.Fprintln(os.Stderr, statusLine(colorize, false, err.Error()))
			return 1
		}
	}

	var frames uint64
	var lastTick glasstokey.Ticks
	for {
		rec, err := cr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintln(os.Stderr, statusLine(colorize, false, err.Error()))
			return 1
		}
		if rec.Frame == nil {
			continue
		}
		lastTick = rec.Frame.ArrivalTime
		if _, err := engine.Ingest(*rec.Frame, lastTick); err != nil {
			fmt.Fprintln(os.Stderr, statusLine(colorize, false, fmt.Sprintf("frame %d: %v", frames, err)))
			return 1
		}
		frames++
	}
	if err := engine.DrainDispatch(lastTick); err != nil {
		fmt.Fprintln(os.Stderr, statusLine(colorize, false, err.Error()))
		return 1
	}

	sum := engine.FingerprintSum()
	fmt.Printf("frames replayed: %d\n", frames)
	fmt.Printf("events dispatched: %d\n", len(egress.Events))
	fmt.Printf("fingerprint: 0x%016x\n", sum)

	if fixturePath == "" {
		fmt.Println(statusLine(colorize, true, "replay completed"))
		return 0
	}

	fixtureData, err := os.ReadFile(fixturePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, statusLine(colorize, false, fmt.Sprintf("read fixture: %v", err)))
		return 1
	}
	var fixture Fixture
	if err := json.Unmarshal(fixtureData, &fixture); err != nil {
		fmt.Fprintln(os.Stderr, statusLine(colorize, false, fmt.Sprintf("parse fixture: %v", err)))
		return 1
	}

	want := fmt.Sprintf("0x%016x", sum)
	if want != fixture.Fingerprint || frames != fixture.Frames {
		fmt.Fprintln(os.Stderr, statusLine(colorize, false,
			fmt.Sprintf("determinism mismatch: got fingerprint=%s frames=%d, fixture wants fingerprint=%s frames=%d",
				want, frames, fixture.Fingerprint, fixture.Frames)))
		return 1
	}

	fmt.Println(statusLine(colorize, true, "replay matches fixture"))
	return 0
}

func installLayout(engine *glasstokey.Engine, layoutPath string) error {
	data, err := os.ReadFile(layoutPath)
	if err != nil {
		return fmt.Errorf("read layout: %w", err)
	}
	doc, err := glasstokey.LoadLayoutDocument(data)
	if err != nil {
		return err
	}
	return doc.ApplyTo(engine)
}

// runSelfTest replays the same small synthetic two-frame session twice
// through independent engines and checks both runs produce identical
// fingerprints and dispatch streams, the cheapest possible determinism
// check that doesn't require a capture file on disk.
func runSelfTest() int {
	colorize := term.IsTerminal(os.Stdout.Fd())

	run := func() (uint64, int) {
		egress := &glasstokey.RecordingEgress{}
		engine := glasstokey.NewEngine(glasstokey.DefaultConfig(), egress, glasstokey.NoopDictation{}, glasstokey.NoopHaptic{}, glasstokey.NewLogger())
		frames := selfTestFrames()
		var now glasstokey.Ticks
		for _, fr := range frames {
			now = fr.ArrivalTime
			if _, err := engine.Ingest(fr, now); err != nil {
				fmt.Fprintln(os.Stderr, statusLine(colorize, false, err.Error()))
				os.Exit(1)
			}
		}
		_ = engine.DrainDispatch(now)
		return engine.FingerprintSum(), len(egress.Events)
	}

	sum1, n1 := run()
	sum2, n2 := run()

	if sum1 != sum2 || n1 != n2 {
		fmt.Fprintln(os.Stderr, statusLine(colorize, false,
			fmt.Sprintf("self-test failed: run1(fingerprint=0x%016x events=%d) != run2(fingerprint=0x%016x events=%d)",
				sum1, n1, sum2, n2)))
		return 1
	}

	fmt.Println(statusLine(colorize, true, fmt.Sprintf("self-test passed: fingerprint=0x%016x events=%d", sum1, n1)))
	return 0
}

func selfTestFrames() []glasstokey.RawFrame {
	return []glasstokey.RawFrame{
		{
			DeviceIndex: 0,
			ArrivalTime: 0,
			Contacts: []glasstokey.RawContact{
				{ID: 1, Position: glasstokey.Point{X: 0.1, Y: 0.1}, Pressure: 20, Tag: glasstokey.TagStarting},
			},
		},
		{
			DeviceIndex: 0,
			ArrivalTime: glasstokey.Ticks(50_000_000),
			Contacts: []glasstokey.RawContact{
				{ID: 1, Position: glasstokey.Point{X: 0.1, Y: 0.1}, Pressure: 20, Tag: glasstokey.TagLeaving},
			},
		},
	}
}

// ANSI SGR codes for the pass/fail label; kept as raw escapes rather than a
// higher-level styling call since all this needs is a single foreground
// color around one word.
const (
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiReset = "\x1b[0m"
)

func statusLine(colorize bool, ok bool, message string) string {
	label := "FAIL"
	color := ansiRed
	if ok {
		label = "PASS"
		color = ansiGreen
	}
	tag := fmt.Sprintf("[%s]", label)
	if colorize {
		tag = color + tag + ansiReset
	}
	// pad using the tag's visible width (ignoring escape codes) so PASS and
	// FAIL lines line up in a terminal the same way a fixed-width column
	// would, the same width accounting terma's renderer does for styled runs.
	pad := 6 - ansi.StringWidth(fmt.Sprintf("[%s]", label))
	if pad < 0 {
		pad = 0
	}
	return fmt.Sprintf("%s%s %s", tag, strings.Repeat(" ", pad), message)
}
