package pulse

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// wordScores maps sentiment-bearing tokens to a base valence in [-1, 1].
// Values are hand-tuned for workplace chat; this is intentionally a small
// lexicon, not a general NLP resource.
var wordScores = map[string]float64{
	"amazing": 0.8, "awesome": 0.8, "great": 0.7, "excellent": 0.8,
	"good": 0.6, "nice": 0.5, "love": 0.8, "loved": 0.8, "like": 0.4,
	"happy": 0.7, "glad": 0.6, "excited": 0.7, "fantastic": 0.8,
	"perfect": 0.8, "wonderful": 0.8, "thanks": 0.5, "thank": 0.5,
	"congrats": 0.8, "congratulations": 0.8, "win": 0.6, "won": 0.6,
	"success": 0.7, "successful": 0.7, "shipped": 0.6, "fixed": 0.5,
	"solved": 0.6, "works": 0.4, "working": 0.3, "helpful": 0.6,
	"appreciate": 0.6, "appreciated": 0.6, "fun": 0.6, "cool": 0.5,
	"easy": 0.4, "smooth": 0.5, "proud": 0.7, "better": 0.4, "best": 0.7,
	"progress": 0.4, "done": 0.3, "ready": 0.3, "yay": 0.8, "woohoo": 0.9,

	"bad": -0.6, "terrible": -0.8, "awful": -0.8, "horrible": -0.8,
	"hate": -0.8, "hated": -0.8, "angry": -0.7, "annoyed": -0.5,
	"annoying": -0.5, "frustrated": -0.7, "frustrating": -0.7,
	"tired": -0.5, "exhausted": -0.8, "exhausting": -0.7, "burnout": -0.9,
	"burned": -0.6, "stress": -0.6, "stressed": -0.7, "stressful": -0.7,
	"overwhelmed": -0.8, "overworked": -0.8, "sad": -0.6, "upset": -0.6,
	"worried": -0.5, "worry": -0.5, "anxious": -0.6, "fail": -0.6,
	"failed": -0.6, "failure": -0.7, "broken": -0.5, "broke": -0.5,
	"bug": -0.3, "bugs": -0.3, "issue": -0.2, "issues": -0.3,
	"problem": -0.3, "problems": -0.4, "blocked": -0.5, "blocker": -0.5,
	"stuck": -0.4, "slow": -0.3, "late": -0.3, "deadline": -0.2,
	"pressure": -0.4, "difficult": -0.4, "hard": -0.3, "impossible": -0.6,
	"worse": -0.5, "worst": -0.8, "mess": -0.5, "chaos": -0.6,
	"confused": -0.4, "confusing": -0.4, "sorry": -0.3, "ugh": -0.6,
	"sigh": -0.4, "crash": -0.5, "crashed": -0.5, "outage": -0.6,
	"incident": -0.4, "quit": -0.6, "quitting": -0.7, "miserable": -0.8,
}

// negators flip the sign of a sentiment token appearing within
// negationWindow tokens after them.
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "nothing": true,
	"cant": true, "cannot": true, "wont": true, "dont": true, "didnt": true,
	"doesnt": true, "isnt": true, "wasnt": true, "arent": true,
	"werent": true, "hardly": true, "barely": true, "without": true,
}

// boosters scale the sentiment token immediately following them.
var boosters = map[string]float64{
	"very": 1.3, "really": 1.3, "extremely": 1.5, "incredibly": 1.5,
	"so": 1.2, "super": 1.4, "totally": 1.3, "absolutely": 1.4,
	"slightly": 0.6, "somewhat": 0.7, "kinda": 0.7, "bit": 0.7, "fairly": 0.8,
}

const (
	negationWindow = 3
	boosterWindow  = 2

	// lexiconNorm bounds the token-score sum into (-1, 1), in the style of
	// VADER's compound normalization.
	lexiconNorm = 2.0

	// maxLexiconConfidence keeps lexicon confidence below what a healthy
	// external scorer reports.
	maxLexiconConfidence = 0.9
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	userMention    = regexp.MustCompile(`<@[UW][A-Z0-9]+(\|[^>]+)?>`)
	channelMention = regexp.MustCompile(`<#C[A-Z0-9]+(\|[^>]+)?>`)
	angleMarkup    = regexp.MustCompile(`<[^>]+>`)
)

// cleanMarkup strips URLs and Slack-style mention/link markup so scoring only
// sees human-authored words.
func cleanMarkup(text string) string {
	text = urlPattern.ReplaceAllString(text, " ")
	text = userMention.ReplaceAllString(text, " ")
	text = channelMention.ReplaceAllString(text, " ")
	text = angleMarkup.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

func tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ScoreText scores a message with the lexicon heuristic alone: token valences
// with negation flips and booster scaling, blended with any emoji present.
// Deterministic, no I/O, never fails; empty or unscorable text yields (0, 0).
func ScoreText(text string) (value float64, confidence float64) {
	emojiSum, emojiCount := scoreTextEmoji(text)

	clean := cleanMarkup(text)
	tokens := tokenize(clean)

	var sum float64
	hits := 0
	for i, tok := range tokens {
		base, ok := wordScores[tok]
		if !ok {
			continue
		}
		hits++

		for j := i - 1; j >= 0 && j >= i-boosterWindow; j-- {
			if mult, ok := boosters[tokens[j]]; ok {
				base *= mult
				break
			}
		}
		for j := i - 1; j >= 0 && j >= i-negationWindow; j-- {
			if negators[tokens[j]] {
				base = -base
				break
			}
		}
		sum += clamp(base, -1, 1)
	}

	if hits == 0 && emojiCount == 0 {
		return 0, 0
	}

	textScore := 0.0
	if hits > 0 {
		textScore = sum / math.Sqrt(sum*sum+lexiconNorm)
	}

	value = textScore
	if emojiCount > 0 {
		emojiScore := emojiSum / float64(emojiCount)
		if hits > 0 {
			value = 0.6*textScore + 0.4*emojiScore
		} else {
			value = emojiScore
		}
	}
	value = clamp(value, -1, 1)

	total := len(tokens) + emojiCount
	ratio := float64(hits+emojiCount) / float64(max(total, 1))
	confidence = math.Min(maxLexiconConfidence, 0.3+0.6*ratio)
	return value, confidence
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
