package slideshow

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"math"
	"os/exec"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// FrameEncoder consumes rendered frames. The renderer reuses the frame
// buffer after WriteFrame returns.
type FrameEncoder interface {
	Start(width, height, fps int) error
	WriteFrame(frame *image.RGBA) error
	Close() error
}

// FrameCounter counts frames and fingerprints them. It is the dry-run
// sink of the CLI.
type FrameCounter struct {
	Width, Height, FPS int
	Frames             int
	Closed             bool
	// Digest is an xxhash over every frame, in order.
	Digest uint64

	// OnFrame, when set, is called after each frame with the count so far.
	OnFrame func(n int)

	h *xxhash.Digest
}

func (c *FrameCounter) Start(width, height, fps int) error {
	c.Width, c.Height, c.FPS = width, height, fps
	c.h = xxhash.New()
	return nil
}

func (c *FrameCounter) WriteFrame(frame *image.RGBA) error {
	if c.h == nil {
		return fmt.Errorf("frame counter not started")
	}
	_, _ = c.h.Write(frame.Pix)
	c.Frames++
	if c.OnFrame != nil {
		c.OnFrame(c.Frames)
	}
	return nil
}

func (c *FrameCounter) Close() error {
	if c.h != nil {
		c.Digest = c.h.Sum64()
	}
	c.Closed = true
	return nil
}

// GIFEncoder writes an animated GIF to W. Every Nth frame is kept; GIF
// delays are in centiseconds so high frame rates are decimated.
type GIFEncoder struct {
	W     io.Writer
	Every int
	// LoopCount follows image/gif: 0 loops forever, -1 plays once.
	LoopCount int

	anim  gif.GIF
	delay int
	n     int
}

// NewGIFEncoder keeps roughly maxFPS frames per second of the input.
func NewGIFEncoder(w io.Writer, fps, maxFPS int) *GIFEncoder {
	every := 1
	if maxFPS > 0 && fps > maxFPS {
		every = int(math.Ceil(float64(fps) / float64(maxFPS)))
	}
	return &GIFEncoder{W: w, Every: every}
}

func (e *GIFEncoder) Start(width, height, fps int) error {
	if e.W == nil {
		return fmt.Errorf("gif encoder has no writer")
	}
	e.Every = max(1, e.Every)
	e.delay = max(2, int(math.Round(100*float64(e.Every)/float64(fps))))
	e.anim = gif.GIF{LoopCount: e.LoopCount, Config: image.Config{Width: width, Height: height}}
	return nil
}

func (e *GIFEncoder) WriteFrame(frame *image.RGBA) error {
	defer func() { e.n++ }()
	if e.n%e.Every != 0 {
		return nil
	}
	p := image.NewPaletted(frame.Bounds(), palette.Plan9)
	draw.FloydSteinberg.Draw(p, frame.Bounds(), frame, frame.Bounds().Min)
	e.anim.Image = append(e.anim.Image, p)
	e.anim.Delay = append(e.anim.Delay, e.delay)
	return nil
}

func (e *GIFEncoder) Close() error {
	if len(e.anim.Image) == 0 {
		return fmt.Errorf("gif has no frames")
	}
	return gif.EncodeAll(e.W, &e.anim)
}

// FFmpegEncoder pipes raw RGBA frames into ffmpeg and writes an H.264 MP4.
type FFmpegEncoder struct {
	Output string
	// Binary defaults to "ffmpeg" on PATH.
	Binary string
	CRF    int
	Preset string

	once   sync.Once
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	width  int
}

func (e *FFmpegEncoder) Start(width, height, fps int) error {
	bin := e.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("%s not found in PATH: %w", bin, err)
	}
	crf := e.CRF
	if crf <= 0 {
		crf = 20
	}
	preset := e.Preset
	if preset == "" {
		preset = "medium"
	}

	e.width = width
	e.cmd = exec.Command(path,
		"-y", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(fps),
		"-i", "-",
		// yuv420p needs even dimensions
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		e.Output,
	)
	e.cmd.Stderr = &e.stderr
	if e.stdin, err = e.cmd.StdinPipe(); err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	if err := e.cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	return nil
}

func (e *FFmpegEncoder) WriteFrame(frame *image.RGBA) error {
	if e.stdin == nil {
		return fmt.Errorf("ffmpeg not started")
	}
	row := 4 * e.width
	if frame.Stride == row {
		if _, err := e.stdin.Write(frame.Pix[:row*frame.Bounds().Dy()]); err != nil {
			return fmt.Errorf("ffmpeg write: %w", err)
		}
		return nil
	}
	for y := 0; y < frame.Bounds().Dy(); y++ {
		off := y * frame.Stride
		if _, err := e.stdin.Write(frame.Pix[off : off+row]); err != nil {
			return fmt.Errorf("ffmpeg write: %w", err)
		}
	}
	return nil
}

func (e *FFmpegEncoder) Close() error {
	var err error
	e.once.Do(func() {
		if e.cmd == nil {
			return
		}
		_ = e.stdin.Close()
		err = e.wrap(e.cmd.Wait())
	})
	return err
}

// wrap attaches ffmpeg's stderr. Only safe once the process has exited.
func (e *FFmpegEncoder) wrap(err error) error {
	if err == nil {
		return nil
	}
	if msg := bytes.TrimSpace(e.stderr.Bytes()); len(msg) > 0 {
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return fmt.Errorf("ffmpeg: %w", err)
}
