package util

import (
	"os"

	"golang.org/x/term"
)

const (
	minBarWidth = 10
	maxBarWidth = 40
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// GetTerminalWidth returns the width of stdout, or 80 if it is not a terminal
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// BarWidth sizes a progress bar to a third of the terminal, clamped so the
// description and counters still fit on one line
func BarWidth() int {
	return clampBarWidth(GetTerminalWidth() / 3)
}

func clampBarWidth(w int) int {
	return min(max(w, minBarWidth), maxBarWidth)
}
