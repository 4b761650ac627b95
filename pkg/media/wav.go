package media

import (
	"bytes"
	"fmt"
	"os"
)

// VerifyWAVHeader checks the first 44 bytes of path: it must start with
// "RIFF" and contain "WAVE" within the canonical header region.
func VerifyWAVHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open wav file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 44)
	n, err := f.Read(header)
	if err != nil {
		return fmt.Errorf("read wav header: %w", err)
	}
	if n < 44 {
		return fmt.Errorf("wav header truncated: read %d bytes", n)
	}

	if !bytes.HasPrefix(header, []byte("RIFF")) {
		return fmt.Errorf("wav header missing RIFF prefix")
	}
	if !bytes.Contains(header, []byte("WAVE")) {
		return fmt.Errorf("wav header missing WAVE marker")
	}

	return nil
}
