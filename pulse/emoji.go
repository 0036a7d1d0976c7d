package pulse

import "strings"

// emojiRuneScores maps emoji code points found inline in message text to a
// valence in [-1, 1]. Variation selectors are ignored, so composed forms like
// "❤️" resolve through their base rune.
var emojiRuneScores = map[rune]float64{
	'😊': 0.8, '😀': 0.8, '😃': 0.8, '😄': 0.8, '😁': 0.8,
	'😆': 0.7, '😂': 0.9, '🤣': 0.9, '😇': 0.6, '🙂': 0.5,
	'😉': 0.5, '😋': 0.6, '😎': 0.7, '🤗': 0.8, '🤩': 0.9,
	'😍': 0.9, '🥰': 0.9, '😘': 0.8, '😗': 0.6, '☺': 0.6,
	'😌': 0.4, '😏': 0.3, '🤔': 0.1, '🙄': -0.3, '😒': -0.4,
	'😔': -0.6, '😞': -0.7, '😟': -0.6, '😢': -0.8, '😭': -0.9,
	'😤': -0.5, '😠': -0.7, '😡': -0.8, '🤬': -0.9, '😰': -0.6,
	'😨': -0.7, '😱': -0.8, '😪': -0.4, '🙃': 0.2, '😶': 0.0,
	'🤐': -0.1, '😐': 0.0, '😑': -0.1, '🤨': -0.2, '🧐': 0.1,
	'🤯': -0.3, '😵': -0.5, '🥴': -0.2, '🤮': -0.8, '🤢': -0.6,
	'🤧': -0.3, '😷': -0.2, '🤒': -0.4, '🤕': -0.5, '👍': 0.6,
	'👎': -0.6, '👏': 0.7, '🙌': 0.8, '👌': 0.5, '✨': 0.6,
	'🎉': 0.9, '🎊': 0.8, '💪': 0.7, '🔥': 0.8, '⭐': 0.6,
	'💯': 0.8, '✅': 0.6, '❌': -0.5, '⚠': -0.3, '🚨': -0.6,
	'💔': -0.8, '❤': 0.9, '💕': 0.8, '💖': 0.8, '💗': 0.8,
	'😴': -0.1, '💤': -0.1, '🤤': 0.1, '😻': 0.8, '💀': -0.7,
}

// emojiNameScores maps Slack reaction names (the ":name:" form without
// colons) to a valence. Unrecognized names score 0.
var emojiNameScores = map[string]float64{
	"smile": 0.8, "grinning": 0.8, "smiley": 0.8, "laughing": 0.7,
	"joy": 0.9, "rofl": 0.9, "slightly_smiling_face": 0.5, "wink": 0.5,
	"sunglasses": 0.7, "hugging_face": 0.8, "star-struck": 0.9,
	"heart_eyes": 0.9, "smiling_face_with_3_hearts": 0.9, "blush": 0.8,
	"relieved": 0.4, "thinking_face": 0.1, "rolling_eyes": -0.3,
	"unamused": -0.4, "pensive": -0.6, "disappointed": -0.7,
	"worried": -0.6, "cry": -0.8, "sob": -0.9, "triumph": -0.5,
	"angry": -0.7, "rage": -0.8, "face_with_symbols_on_mouth": -0.9,
	"cold_sweat": -0.6, "fearful": -0.7, "scream": -0.8, "sleepy": -0.4,
	"upside_down_face": 0.2, "neutral_face": 0.0, "expressionless": -0.1,
	"exploding_head": -0.3, "dizzy_face": -0.5, "woozy_face": -0.2,
	"face_vomiting": -0.8, "nauseated_face": -0.6, "mask": -0.2,
	"thumbsup": 0.6, "+1": 0.6, "thumbsdown": -0.6, "-1": -0.6,
	"clap": 0.7, "raised_hands": 0.8, "ok_hand": 0.5, "sparkles": 0.6,
	"tada": 0.9, "confetti_ball": 0.8, "muscle": 0.7, "fire": 0.8,
	"star": 0.6, "100": 0.8, "white_check_mark": 0.6, "heavy_check_mark": 0.6,
	"x": -0.5, "warning": -0.3, "rotating_light": -0.6,
	"broken_heart": -0.8, "heart": 0.9, "two_hearts": 0.8,
	"sparkling_heart": 0.8, "growing_heart": 0.8, "sleeping": -0.1,
	"zzz": -0.1, "heart_eyes_cat": 0.8, "skull": -0.7, "eyes": 0.2,
	"pray": 0.4, "wave": 0.4, "rocket": 0.7, "ship": 0.5, "shipit": 0.6,
	"facepalm": -0.4, "man-facepalming": -0.4, "woman-facepalming": -0.4,
	"shrug": -0.1, "melting_face": -0.4, "sweat_smile": 0.2,
}

// ScoreEmoji maps a reaction emoji name to a valence in [-1, 1]. Colons and
// skin-tone suffixes are tolerated; unrecognized names yield 0.
func ScoreEmoji(name string) float64 {
	name = strings.Trim(strings.TrimSpace(name), ":")
	if i := strings.Index(name, "::skin-tone-"); i >= 0 {
		name = name[:i]
	}
	return emojiNameScores[name]
}

// scoreTextEmoji sums the valence of every recognized emoji rune in text and
// counts all emoji-range runes, so unknown emoji dilute toward neutral the
// same way unknown words do.
func scoreTextEmoji(text string) (sum float64, count int) {
	for _, r := range text {
		if v, ok := emojiRuneScores[r]; ok {
			sum += v
			count++
			continue
		}
		if isEmojiRune(r) {
			count++
		}
	}
	return sum, count
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, emoticons, symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	}
	return false
}
