package inspect

import (
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// MIMEInfo is the detected content type of a file.
type MIMEInfo struct {
	MIME      string
	Extension string
	Size      int64
}

func (m MIMEInfo) String() string {
	s := m.MIME
	if m.Extension != "" {
		s += " (" + m.Extension + ")"
	}
	return s + ", " + formatBytes(m.Size)
}

// DetectMIME sniffs the content type of the file at path.
func DetectMIME(path string) (MIMEInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return MIMEInfo{}, err
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return MIMEInfo{}, err
	}
	return MIMEInfo{
		MIME:      mtype.String(),
		Extension: mtype.Extension(),
		Size:      info.Size(),
	}, nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d bytes", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
