package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/eternnoir/mediascribe/pkg/apperror"
)

// Normalize emits MP3 mono 16kHz 128kbps with a fixed filter chain
// (volume=1.0, highpass=40Hz, lowpass=7kHz), stripping container metadata.
func (a *ffmpegAdapter) Normalize(ctx context.Context, blobPath, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return apperror.Wrap(apperror.KindExternalTool, "normalize", fmt.Errorf("create output dir: %w", err))
	}

	stream := ffmpeg.Input(blobPath).Output(outPath, ffmpeg.KwArgs{
		"vn":           "",
		"acodec":       "libmp3lame",
		"ar":           "16000",
		"ac":           "1",
		"b:a":          "128k",
		"filter:a":     "volume=1.0,highpass=f=40,lowpass=f=7000",
		"map_metadata": "-1",
	})

	if err := runWithTimeout(ctx, defaultOperationTimeout, func() error {
		return stream.OverWriteOutput().ErrorToStdOut().Run()
	}); err != nil {
		return apperror.Wrap(apperror.KindExternalTool, "normalize", err)
	}

	return nil
}
