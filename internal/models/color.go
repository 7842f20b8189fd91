package models

// Color is one of the five Magic colors.
type Color string

const (
	ColorWhite Color = "W"
	ColorBlue  Color = "U"
	ColorBlack Color = "B"
	ColorRed   Color = "R"
	ColorGreen Color = "G"
)

// ColorPriority is the fixed ordering used to break ties between colors.
var ColorPriority = []Color{ColorWhite, ColorBlue, ColorBlack, ColorRed, ColorGreen}

// ColorIdentity is the subset of the five colors a card belongs to.
// An empty identity means the card is colorless.
type ColorIdentity []Color

func (ci ColorIdentity) Contains(c Color) bool {
	for _, v := range ci {
		if v == c {
			return true
		}
	}
	return false
}

func (ci ColorIdentity) Colorless() bool {
	return len(ci) == 0
}
