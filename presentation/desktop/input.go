package desktop

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/wricardo/parkingsim/sim/engine"
)

// Input abstracts the keyboard and mouse so Update can run without a window
type Input interface {
	Pressed(key ebiten.Key) bool
	JustPressed(key ebiten.Key) bool
	// Click reports a left click released or pressed this frame, in window pixels
	Click() (x, y int, ok bool)
}

type ebitenInput struct{}

func (ebitenInput) Pressed(key ebiten.Key) bool {
	return ebiten.IsKeyPressed(key)
}

func (ebitenInput) JustPressed(key ebiten.Key) bool {
	return inpututil.IsKeyJustPressed(key)
}

func (ebitenInput) Click() (int, int, bool) {
	if !inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return 0, 0, false
	}
	x, y := ebiten.CursorPosition()
	return x, y, true
}

// ControlsFromKeys maps arrows (or WASD) and space to driver input
func ControlsFromKeys(in Input) engine.Controls {
	held := func(keys ...ebiten.Key) bool {
		for _, k := range keys {
			if in.Pressed(k) {
				return true
			}
		}
		return false
	}
	return engine.Controls{
		Forward: held(ebiten.KeyArrowUp, ebiten.KeyW),
		Reverse: held(ebiten.KeyArrowDown, ebiten.KeyS),
		Brake:   held(ebiten.KeySpace),
		Left:    held(ebiten.KeyArrowLeft, ebiten.KeyA),
		Right:   held(ebiten.KeyArrowRight, ebiten.KeyD),
	}
}
