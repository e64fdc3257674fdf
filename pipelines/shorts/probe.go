package shorts

import (
	"encoding/json"
	"fmt"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"gocv.io/x/gocv"
)

// ClipInfo is what the decoder reports about a downloaded clip
type ClipInfo struct {
	Width           int
	Height          int
	DurationSeconds float64
}

// GocvProber opens clips with OpenCV and checks that they decode.
type GocvProber struct{}

// ProbeClip reads the clip geometry and duration and decodes the first frame.
// A file that opens but yields no frame is reported as undecodable.
func (GocvProber) ProbeClip(path string) (ClipInfo, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return ClipInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer vc.Close()

	if !vc.IsOpened() {
		return ClipInfo{}, fmt.Errorf("open %s: not a decodable video", path)
	}

	frame := gocv.NewMat()
	defer frame.Close()
	if ok := vc.Read(&frame); !ok || frame.Empty() {
		return ClipInfo{}, fmt.Errorf("decode %s: no readable frame", path)
	}

	info := ClipInfo{
		Width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
	}
	if info.Width <= 0 || info.Height <= 0 {
		info.Width, info.Height = frame.Cols(), frame.Rows()
	}

	fps := vc.Get(gocv.VideoCaptureFPS)
	frames := vc.Get(gocv.VideoCaptureFrameCount)
	if fps <= 0 || frames <= 0 {
		return ClipInfo{}, fmt.Errorf("probe %s: unknown duration (fps=%v frames=%v)", path, fps, frames)
	}
	info.DurationSeconds = frames / fps
	return info, nil
}

type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeMediaDuration returns the container duration of path in seconds.
func ProbeMediaDuration(path string) (float64, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbeDuration(out)
}

func parseProbeDuration(raw string) (float64, error) {
	var p probeFormat
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if p.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output has no duration")
	}
	d, err := strconv.ParseFloat(p.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", p.Format.Duration, err)
	}
	return d, nil
}
