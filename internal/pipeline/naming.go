package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const timestampLayout = "20060102_150405"

// OutputPaths are the files a run writes. Video paths are empty when the
// corresponding artifact is not requested.
type OutputPaths struct {
	Suffix       string
	Image        string
	Timelapse    string
	ReversedClip string
}

// NewOutputPaths derives output names from the source file name and time:
// output_<base>_<timestamp>.<format>, time_lapse_<...>.mp4 and
// reversed_clip_<...>.mp4. An existing image with the same name gets a
// numeric suffix so batch runs within one second do not collide.
func NewOutputPaths(dir, source, format string, now time.Time, timelapse, reversed bool) OutputPaths {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	suffix := fmt.Sprintf("%s_%s", base, now.Format(timestampLayout))
	format = strings.TrimPrefix(strings.ToLower(format), ".")

	candidate := suffix
	for n := 2; fileExists(filepath.Join(dir, "output_"+candidate+"."+format)); n++ {
		candidate = fmt.Sprintf("%s_%d", suffix, n)
	}

	p := OutputPaths{
		Suffix: candidate,
		Image:  filepath.Join(dir, "output_"+candidate+"."+format),
	}
	if timelapse {
		p.Timelapse = filepath.Join(dir, "time_lapse_"+candidate+".mp4")
	}
	if reversed {
		p.ReversedClip = filepath.Join(dir, "reversed_clip_"+candidate+".mp4")
	}
	return p
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
