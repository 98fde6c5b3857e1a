package slideshow

import (
	"math"
	"time"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
)

// Schedule assigns frames to images. Every image gets FramesPerImage
// frames except the last, which also absorbs the remainder.
type Schedule struct {
	Images         int
	TotalFrames    int
	FramesPerImage int
}

// NewSchedule computes the frame budget of a slideshow.
func NewSchedule(images int, duration time.Duration, fps int) (Schedule, error) {
	if images <= 0 {
		return Schedule{}, apperr.New(apperr.ErrCodeInvalidConfig, "slideshow needs at least one image")
	}
	if fps <= 0 || duration <= 0 {
		return Schedule{}, apperr.New(apperr.ErrCodeInvalidConfig, "fps and duration must be positive, got %d fps over %s", fps, duration)
	}
	total := int(math.Round(duration.Seconds() * float64(fps)))
	if total < images {
		return Schedule{}, apperr.New(apperr.ErrCodeInvalidConfig, "%d frames cannot show %d images", total, images)
	}
	return Schedule{Images: images, TotalFrames: total, FramesPerImage: total / images}, nil
}

// FramesFor returns how many frames image i is shown for.
func (s Schedule) FramesFor(i int) int {
	if i == s.Images-1 {
		return s.TotalFrames - s.FramesPerImage*(s.Images-1)
	}
	return s.FramesPerImage
}

// Locate maps a frame index to its image, the frame's index within that
// image and the image progress in [0, 1).
func (s Schedule) Locate(frame int) (img, local int, progress float64) {
	img = min(frame/s.FramesPerImage, s.Images-1)
	local = frame - img*s.FramesPerImage
	return img, local, float64(local) / float64(s.FramesFor(img))
}
