package output

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

const fallbackWidth = 80

// PrintRight prints text right-aligned on the current terminal line.
func PrintRight(text string) {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width = fallbackWidth
	}

	padding := width - len(text)
	if padding < 0 {
		padding = 0
	}

	fmt.Printf("\r%*s%s", padding, "", text)
}

func ProgressBar(percent int, width int) string {
	filled := (percent * width) / 100
	return fmt.Sprintf("%s%s",
		strings.Repeat("█", filled),
		strings.Repeat(" ", width-filled),
	)
}

// StatusBar invokes printF at every tick until the context is done.
func StatusBar(ctx context.Context, refreshRate time.Duration, printF func()) {
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			printF()
		case <-ctx.Done():
			return
		}
	}
}

func PrettyAnalysisStatus(percent int, events uint64) string {
	return fmt.Sprintf("\r%-60s %-20s",
		fmt.Sprintf("Analyzed: [%s] %3d%%", ProgressBar(percent, 40), percent),
		fmt.Sprintf("Events: %d", events),
	)
}
