package desktop

import "image/color"

// Theme holds the colours and stroke widths used to draw a frame
type Theme struct {
	Background color.RGBA
	LotBorder  color.RGBA
	Occupied   color.RGBA
	Free       color.RGBA
	GridDot    color.RGBA
	Route      color.RGBA
	Partial    color.RGBA
	Car        color.RGBA
	CarFront   color.RGBA
	Text       color.RGBA

	BorderWidth float32
	RouteWidth  float32
	DotRadius   float32
}

// DefaultTheme is grey tarmac with red occupied and green free slots
func DefaultTheme() Theme {
	return Theme{
		Background:  color.RGBA{160, 160, 160, 255},
		LotBorder:   color.RGBA{255, 255, 255, 255},
		Occupied:    color.RGBA{255, 0, 0, 255},
		Free:        color.RGBA{0, 255, 0, 255},
		GridDot:     color.RGBA{0, 255, 0, 255},
		Route:       color.RGBA{255, 127, 0, 255},
		Partial:     color.RGBA{255, 127, 0, 128},
		Car:         color.RGBA{40, 40, 200, 255},
		CarFront:    color.RGBA{255, 255, 255, 255},
		Text:        color.RGBA{0, 0, 0, 255},
		BorderWidth: 10,
		RouteWidth:  10,
		DotRadius:   1,
	}
}
