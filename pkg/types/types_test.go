package types

import (
	"image"
	"testing"
)

func TestDrawRect(t *testing.T) {
	target := Dims{Width: 728, Height: 90}
	tests := []struct {
		name string
		draw RectF
		want image.Rectangle
	}{
		{"whole pixels", RectF{X: 10, Y: 0, W: 300, H: 90}, image.Rect(10, 0, 310, 90)},
		{"rounded", RectF{X: 213.6, Y: -0.4, W: 300.5, H: 90.2}, image.Rect(214, 0, 515, 90)},
		{"sliver wide", RectF{X: 363.775, Y: 0, W: 0.45, H: 90}, image.Rect(364, 0, 365, 90)},
		{"sliver tall", RectF{X: 0, Y: 44.8, W: 728, H: 0.3}, image.Rect(0, 45, 728, 46)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Placement{Target: target, Draw: tt.draw}
			if got := p.DrawRect(); got != tt.want {
				t.Errorf("DrawRect() = %v, want %v", got, tt.want)
			}
			if p.Covered().Empty() {
				t.Error("covered area must never be empty for an on-canvas draw")
			}
		})
	}
}

func TestOffsetValid(t *testing.T) {
	for _, o := range []Offset{{}, {X: 50, Y: -50}, {X: -12.5, Y: 7}} {
		if !o.Valid() {
			t.Errorf("%+v should be valid", o)
		}
	}
	for _, o := range []Offset{{X: 50.1}, {Y: -51}} {
		if o.Valid() {
			t.Errorf("%+v should be invalid", o)
		}
	}
}
