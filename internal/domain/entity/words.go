package entity

// StampWordGroup classifies preset words for grouped display.
type StampWordGroup string

const (
	GroupAisatsu     StampWordGroup = "aisatsu"
	GroupKansha      StampWordGroup = "kansha"
	GroupReaction    StampWordGroup = "reaction"
	GroupOen         StampWordGroup = "oen"
	GroupAiFollow    StampWordGroup = "ai_follow"
	GroupGomenFollow StampWordGroup = "gomen_follow"
)

// StampWord is one preset sticker label.
type StampWord struct {
	ID    string
	Label string
	Group StampWordGroup
}

// CustomLabelMaxLength caps free-form labels, matching the client.
const CustomLabelMaxLength = 20

// StampWords is the preset word table.
var StampWords = []StampWord{
	{ID: "ohayo", Label: "おはよう", Group: GroupAisatsu},
	{ID: "oyasumi", Label: "おやすみ", Group: GroupAisatsu},
	{ID: "konnichiwa", Label: "こんにちは", Group: GroupAisatsu},
	{ID: "bye", Label: "バイバイ", Group: GroupAisatsu},
	{ID: "tadaima", Label: "ただいま", Group: GroupAisatsu},
	{ID: "okaeri", Label: "おかえり", Group: GroupAisatsu},
	{ID: "arigato", Label: "ありがとう", Group: GroupKansha},
	{ID: "thanks", Label: "Thanks", Group: GroupKansha},
	{ID: "otsukare", Label: "おつかれさま", Group: GroupKansha},
	{ID: "tasukatta", Label: "助かった", Group: GroupKansha},
	{ID: "iine", Label: "いいね！", Group: GroupReaction},
	{ID: "wakatta", Label: "わかった", Group: GroupReaction},
	{ID: "ryokai", Label: "了解", Group: GroupReaction},
	{ID: "ok", Label: "OK", Group: GroupReaction},
	{ID: "yatta", Label: "やったー", Group: GroupReaction},
	{ID: "ee", Label: "えー！", Group: GroupReaction},
	{ID: "ganbare", Label: "がんばれ", Group: GroupOen},
	{ID: "fight", Label: "ファイト", Group: GroupOen},
	{ID: "daijobu", Label: "大丈夫", Group: GroupOen},
	{ID: "murishinaide", Label: "無理しないで", Group: GroupOen},
	{ID: "daisuki", Label: "だいすき", Group: GroupAiFollow},
	{ID: "kawaii", Label: "かわいい", Group: GroupAiFollow},
	{ID: "iiko", Label: "いい子", Group: GroupAiFollow},
	{ID: "chu", Label: "チュー", Group: GroupAiFollow},
	{ID: "gomen", Label: "ごめんね", Group: GroupGomenFollow},
	{ID: "okurete_gomen", Label: "遅れてごめん", Group: GroupGomenFollow},
	{ID: "otto", Label: "おっと", Group: GroupGomenFollow},
	{ID: "doki", Label: "ドキッ", Group: GroupGomenFollow},
}

// LookupWord resolves a preset word by id.
func LookupWord(id string) (StampWord, bool) {
	for _, w := range StampWords {
		if w.ID == id {
			return w, true
		}
	}
	return StampWord{}, false
}
