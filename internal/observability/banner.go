package observability

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

var spinnerFrames = []string{"◜", "◝", "◞", "◟"}

// termMu serialises all terminal output so the status line's cursor
// save/restore is never interleaved with a log write.
var (
	termMu     sync.Mutex
	spinnerIdx atomic.Int64
)

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

type termWriter struct {
	out io.Writer
}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return tw.out.Write(p)
}

// NewTermWriter returns an io.Writer for log.SetOutput that is serialised
// with PrintLiveStatus.
func NewTermWriter() io.Writer {
	return termWriter{out: os.Stderr}
}

func PrintBanner() {
	banner := []string{
		"      _              _          ",
		"  ___| |_ ___ _ __ _| |_ _ _ __ ",
		" (_-<  _/ -_) '_ \\ V  V / (_-< -_)",
		" /__/\\__\\___| .__/\\_/\\_/|_/__\\___|",
		"            |_|  plan . execute . report",
	}
	width := termWidth()
	for _, l := range banner {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan, l, colorReset)
	}
	fmt.Println()
}

// InitializeTerminal reserves the first lines for the banner and status line
// and scrolls logs below them.
func InitializeTerminal() {
	fmt.Print("\033[2J\033[H")
	PrintBanner()
	fmt.Print("\033[9;r")
	fmt.Print("\033[9;1H")
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// StatusLine renders the one-line dashboard for the given snapshot.
func StatusLine(s Snapshot, now time.Time, width int) string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	health, healthColor := "HEALTHY", colorNeonCyan
	switch delta := now.Sub(s.LastHeartbeat); {
	case delta >= 90*time.Second:
		health, healthColor = "OFFLINE", colorNeonMag
	case delta >= 40*time.Second:
		health, healthColor = "LAGGING", colorPurple
	}

	spin := " "
	if s.Phase != PhaseIdle {
		spin = spinnerFrames[spinnerIdx.Add(1)%int64(len(spinnerFrames))]
	}

	task := s.ActiveTask
	if task == "" {
		task = "Waiting..."
	}
	if limit := width / 3; limit > 3 && len(task) > limit {
		task = task[:limit-3] + "..."
	}

	return fmt.Sprintf("%s%s%s | %s %-7s | runs:%d | %s | up %v | %.1fMB",
		healthColor, health, colorReset,
		spin, s.Phase,
		s.ActiveRuns,
		task,
		now.Sub(startTime).Round(time.Second),
		float64(m.Alloc)/1024/1024,
	)
}

// PrintLiveStatus redraws the status line in place.
func PrintLiveStatus() {
	line := StatusLine(GetStatus(), time.Now(), termWidth())

	termMu.Lock()
	fmt.Printf("\033[s\033[7;1H\033[K%s\033[u", line)
	termMu.Unlock()
}
