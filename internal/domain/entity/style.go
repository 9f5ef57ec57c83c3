package entity

// StyleType is the closed set of icon styles the product offers.
type StyleType string

const (
	Style3DAnime            StyleType = "3d-anime"
	StyleWatercolor         StyleType = "watercolor"
	StyleFluffy             StyleType = "fluffy"
	StyleCyberpunk          StyleType = "cyberpunk"
	StyleKorean             StyleType = "korean-style"
	StyleSimpleIllustration StyleType = "simple-illustration"
)

// StyleTypes lists every supported style, in display order.
var StyleTypes = []StyleType{
	Style3DAnime,
	StyleWatercolor,
	StyleFluffy,
	StyleCyberpunk,
	StyleKorean,
	StyleSimpleIllustration,
}

func (s StyleType) Valid() bool {
	for _, st := range StyleTypes {
		if s == st {
			return true
		}
	}
	return false
}
