package shell

import (
	"fmt"
	"io"
	"time"

	"github.com/fruitsalade/remsh/pkg/models"
)

// writeEntry prints one ls line: a kind tag, the size and the name.
func writeEntry(w io.Writer, e models.Entry) {
	if e.IsDir() {
		fmt.Fprintf(w, "[D]\t%10s\t%s/\n", "-", e.Name)
		return
	}
	fmt.Fprintf(w, "[F]\t%10s\t%s\n", formatSize(e.Size), e.Name)
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}
