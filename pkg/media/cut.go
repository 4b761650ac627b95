package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/eternnoir/mediascribe/pkg/apperror"
)

// Cut produces a single contiguous segment [start, start+duration) of blob,
// written to outPath at the configured format/sample rate/channel count.
func (a *ffmpegAdapter) Cut(ctx context.Context, blobPath string, start, duration time.Duration, outPath string, opts CutOptions) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return apperror.Wrap(apperror.KindExternalTool, "cut", fmt.Errorf("create output dir: %w", err))
	}

	acodec := "pcm_s16le"
	if opts.Format == "mp3" {
		acodec = "libmp3lame"
	}

	stream := ffmpeg.Input(blobPath, ffmpeg.KwArgs{
		"ss": formatTimestamp(start),
		"t":  formatTimestamp(duration),
	}).Output(outPath, ffmpeg.KwArgs{
		"acodec": acodec,
		"ar":     fmt.Sprintf("%d", opts.SampleRate),
		"ac":     fmt.Sprintf("%d", opts.Channels),
		"map":    "0:a",
	})

	if err := runWithTimeout(ctx, defaultOperationTimeout, func() error {
		return stream.OverWriteOutput().ErrorToStdOut().Run()
	}); err != nil {
		return apperror.Wrap(apperror.KindExternalTool, "cut", err)
	}

	return nil
}

// formatTimestamp renders a duration as HH:MM:SS.mmm, the layout ffmpeg's
// -ss/-t flags expect.
func formatTimestamp(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	millis := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
}

// FormatTimestampForFilename renders HH_MM_SS_mmm, the layout the Splitter
// uses in chunk filenames.
func FormatTimestampForFilename(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	millis := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d_%02d_%02d_%03d", hours, minutes, seconds, millis)
}
