// Package prompt builds the text sent to the remote model. The style and
// emotion tables are closed maps validated at startup so an unknown key is a
// hard error instead of a silent fallback.
package prompt

import (
	"fmt"

	"github.com/24sk/anime/internal/domain/entity"
)

// Model names used by the synthesis step. 3d-anime uses the higher-fidelity
// model; every other style shares the default.
const (
	ModelDefault      = "gemini-2.5-flash-image"
	ModelHighFidelity = "imagen-4.0-generate-001"
	ModelAnalysis     = "gemini-2.0-flash"
)

var stylePrompts = map[entity.StyleType]string{
	entity.Style3DAnime:            "Transform this pet into a 3D Pixar-style animated character. High detail, soft fur, expressive eyes.",
	entity.StyleWatercolor:         "Create a soft watercolor painting of this pet. Artistic splashes, pastel colors, white background.",
	entity.StyleFluffy:             "A cute, hand-drawn fluffy illustration. Warm and cozy vibes, simple lines.",
	entity.StyleCyberpunk:          "Cool cyberpunk pet icon. Neon lights, futuristic accessories, vibrant glowing colors.",
	entity.StyleKorean:             "Create a modern Korean-style pet icon. Vibrant colors, smooth gradients, cute and charming design, popular K-pop aesthetic.",
	entity.StyleSimpleIllustration: "Create a simple, minimalist pet icon. Clean lines, solid colors, white or transparent background, modern and versatile.",
}

// emotionDirectives maps a sticker label to the pose/expression the model
// should render. Unknown labels fall back to a generic cheerful directive.
var emotionDirectives = map[string]string{
	"おはよう":   "waking up, stretching, sleepy but happy morning face",
	"おやすみ":   "sleepy, closed eyes, cozy blanket, peaceful night mood",
	"こんにちは":  "friendly wave, bright smile, welcoming pose",
	"バイバイ":   "waving goodbye with one paw, slightly wistful smile",
	"ただいま":   "walking in happily, relieved to be home",
	"おかえり":   "welcoming pose, open arms, delighted expression",
	"ありがとう":  "grateful bow, sparkling thankful eyes",
	"Thanks": "cheerful thumbs-up, grateful grin",
	"おつかれさま": "gentle appreciative smile, relaxed encouraging pose",
	"助かった":   "relieved expression, paw on chest, big exhale",
	"いいね！":   "enthusiastic thumbs-up, sparkling approving eyes",
	"わかった":   "confident nod, understanding expression",
	"了解":     "crisp salute, attentive expression",
	"OK":     "paws forming a circle, upbeat agreeable face",
	"やったー":   "jumping with joy, both paws up, ecstatic",
	"えー！":    "shocked wide eyes, paws on cheeks",
	"がんばれ":   "cheering with a small flag, energetic fighting pose",
	"ファイト":   "raised fist, determined encouraging expression",
	"大丈夫":    "calm reassuring smile, gentle comforting pose",
	"無理しないで": "caring worried look, soft comforting gesture",
	"だいすき":   "hugging a heart, loving eyes, surrounded by small hearts",
	"かわいい":   "admiring sparkly eyes, paws clasped together",
	"いい子":    "patting gesture, proud warm smile",
	"チュー":    "puckered lips blowing a kiss, floating heart",
	"ごめんね":   "apologetic bow, drooping ears, teary eyes",
	"遅れてごめん": "rushing in flustered, apologetic sweat drop",
	"おっと":    "startled oops face, paw over mouth",
	"ドキッ":    "surprised blush, heart skipping, wide eyes",
}

const genericEmotionDirective = "cheerful expressive pose matching the word"

// ValidateTables checks at startup that every declared style has a prompt.
func ValidateTables() error {
	for _, st := range entity.StyleTypes {
		if _, ok := stylePrompts[st]; !ok {
			return fmt.Errorf("style %q has no generation prompt", st)
		}
	}
	return nil
}

// ForAnalysis is the instruction for the image analysis step.
func ForAnalysis() string {
	return `You are an expert at analyzing pet photos. From the uploaded photo, extract:
1. Species: dog, cat, or other pet type
2. Coat color and markings: concrete colors and patterns
3. Accessories: collar, ribbon, bandana and their look
4. Expression and pose: anything distinctive
Describe the result in warm Japanese a pet owner would use for their own pet.`
}

// ForStyle builds the icon generation prompt for a validated style.
func ForStyle(style entity.StyleType, petDescription string) (string, error) {
	p, ok := stylePrompts[style]
	if !ok {
		return "", fmt.Errorf("unknown style type %q", style)
	}
	return fmt.Sprintf("%s Based on: %s", p, petDescription), nil
}

// ForSticker builds the sticker generation prompt. The model is told to leave
// the background flat chroma green and to render no text at all; the label is
// composited deterministically afterwards.
func ForSticker(label, petDescription string) string {
	directive, ok := emotionDirectives[label]
	if !ok {
		directive = genericEmotionDirective
	}
	return fmt.Sprintf(
		"Create a cute sticker illustration of this pet: %s. Pose and emotion: %s. "+
			"Flat uniform pure green (#00FF00) background, no gradients or shadows on the background. "+
			"Do NOT render any text, letters or captions in the image.",
		petDescription, directive,
	)
}

// ForAux builds the prompt for the auxiliary batch images (main thumbnail and
// chat tab icon): the pet alone, no label, same chroma background contract.
func ForAux(petDescription string) string {
	return fmt.Sprintf(
		"Create a cute sticker-style illustration of this pet: %s. Friendly neutral smiling pose. "+
			"Flat uniform pure green (#00FF00) background, no gradients or shadows on the background. "+
			"Do NOT render any text, letters or captions in the image.",
		petDescription,
	)
}

// ModelForStyle selects the synthesis model variant for a style.
func ModelForStyle(style entity.StyleType) string {
	if style == entity.Style3DAnime {
		return ModelHighFidelity
	}
	return ModelDefault
}
