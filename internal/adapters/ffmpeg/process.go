// Package ffmpeg runs ffmpeg subprocesses as the codec engine: encoding the
// recorded stream and decoding remote RTP tracks into raw media.
package ffmpeg

import (
	"encoding/binary"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"sync"

	"github.com/dkeye/Interview/internal/media"
	"golang.org/x/image/draw"
)

const stderrTail = 4096

// tailBuffer keeps the last bytes ffmpeg wrote to stderr for error reports.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - stderrTail; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

func command(bin string, args ...string) (*exec.Cmd, *tailBuffer) {
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.Command(bin, args...)
	tail := &tailBuffer{}
	cmd.Stderr = tail
	return cmd, tail
}

func waitErr(cmd *exec.Cmd, tail *tailBuffer) error {
	if err := cmd.Wait(); err != nil {
		if msg := tail.String(); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func size(w, h int) string { return strconv.Itoa(w) + "x" + strconv.Itoa(h) }

// fitFrame copies the latest frame of v into dst, scaling when the sizes differ.
// It reports false when v has no frame yet.
func fitFrame(v media.VideoTrack, dst *image.RGBA) bool {
	return v.View(func(img *image.RGBA) {
		if img.Bounds().Eq(dst.Bounds()) {
			copy(dst.Pix, img.Pix)
			return
		}
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	})
}

func putSamples(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(s))
	}
}

func getSamples(dst []int16, src []byte) {
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(src[2*i:]))
	}
}
