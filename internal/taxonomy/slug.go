package taxonomy

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	slugStrip    = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)
	slugSpace    = regexp.MustCompile(`\s+`)
	slugHyphens  = regexp.MustCompile(`-+`)
	smallYaYuYo  = map[rune]string{'ゃ': "a", 'ゅ': "u", 'ょ': "o"}
	smallVowels  = map[rune]string{'ぁ': "a", 'ぃ': "i", 'ぅ': "u", 'ぇ': "e", 'ぉ': "o"}
	hiraganaBase = map[rune]string{
		'あ': "a", 'い': "i", 'う': "u", 'え': "e", 'お': "o",
		'か': "ka", 'き': "ki", 'く': "ku", 'け': "ke", 'こ': "ko",
		'が': "ga", 'ぎ': "gi", 'ぐ': "gu", 'げ': "ge", 'ご': "go",
		'さ': "sa", 'し': "shi", 'す': "su", 'せ': "se", 'そ': "so",
		'ざ': "za", 'じ': "ji", 'ず': "zu", 'ぜ': "ze", 'ぞ': "zo",
		'た': "ta", 'ち': "chi", 'つ': "tsu", 'て': "te", 'と': "to",
		'だ': "da", 'ぢ': "ji", 'づ': "zu", 'で': "de", 'ど': "do",
		'な': "na", 'に': "ni", 'ぬ': "nu", 'ね': "ne", 'の': "no",
		'は': "ha", 'ひ': "hi", 'ふ': "fu", 'へ': "he", 'ほ': "ho",
		'ば': "ba", 'び': "bi", 'ぶ': "bu", 'べ': "be", 'ぼ': "bo",
		'ぱ': "pa", 'ぴ': "pi", 'ぷ': "pu", 'ぺ': "pe", 'ぽ': "po",
		'ま': "ma", 'み': "mi", 'む': "mu", 'め': "me", 'も': "mo",
		'や': "ya", 'ゆ': "yu", 'よ': "yo",
		'ら': "ra", 'り': "ri", 'る': "ru", 'れ': "re", 'ろ': "ro",
		'わ': "wa", 'ゐ': "i", 'ゑ': "e", 'を': "wo", 'ん': "n",
		'ゔ': "vu",
	}
)

// Slugger turns display names into ASCII slugs. With a dictionary it reads
// kanji through their katakana reading; without one kanji are dropped.
type Slugger struct {
	tok *tokenizer.Tokenizer
}

// NewSlugger builds a slugger. withReadings loads the IPA dictionary.
func NewSlugger(withReadings bool) (*Slugger, error) {
	if !withReadings {
		return &Slugger{}, nil
	}
	tok, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("kagome tokenizer: %w", err)
	}
	return &Slugger{tok: tok}, nil
}

// Slugify romanizes kana, strips everything outside [A-Za-z0-9 -], turns
// whitespace into hyphens, collapses and trims hyphens and lowercases.
func (s *Slugger) Slugify(name string) string {
	text := norm.NFKC.String(width.Fold.String(name))
	if s != nil && s.tok != nil && hasHan(text) {
		text = s.readings(text)
	}
	text = romanize(katakanaToHiragana(text))
	text = slugStrip.ReplaceAllString(text, "")
	text = slugSpace.ReplaceAllString(text, "-")
	text = slugHyphens.ReplaceAllString(text, "-")
	text = strings.Trim(text, "-")
	return strings.ToLower(text)
}

// SlugOrHash returns Slugify(name), or a stable "<prefix>-<hash>" when nothing ASCII survives.
func (s *Slugger) SlugOrHash(prefix, name string) string {
	if slug := s.Slugify(name); slug != "" {
		return slug
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return fmt.Sprintf("%s-%08x", prefix, h.Sum32())
}

func (s *Slugger) readings(text string) string {
	var b strings.Builder
	for _, tok := range s.tok.Tokenize(text) {
		if reading, ok := tok.Reading(); ok && reading != "*" && isJapanese(tok.Surface) {
			b.WriteString(" ")
			b.WriteString(reading)
			b.WriteString(" ")
			continue
		}
		b.WriteString(tok.Surface)
	}
	return b.String()
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func isJapanese(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}

func katakanaToHiragana(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'ァ' && r <= 'ヶ' {
			return r - 0x60
		}
		if r == 'ー' {
			return -1
		}
		return r
	}, s)
}

func romanize(s string) string {
	runes := []rune(s)
	var b strings.Builder
	double := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == 'っ' {
			double = true
			continue
		}
		syllable, ok := hiraganaBase[r]
		if !ok {
			if v, small := smallVowels[r]; small {
				syllable, ok = v, true
			}
		}
		if !ok {
			double = false
			b.WriteRune(r)
			continue
		}
		if i+1 < len(runes) {
			if tail, yoon := smallYaYuYo[runes[i+1]]; yoon && strings.HasSuffix(syllable, "i") && len(syllable) > 1 {
				syllable = contract(syllable, tail)
				i++
			}
		}
		if double {
			if strings.HasPrefix(syllable, "ch") {
				b.WriteString("t")
			} else if c := syllable[0]; !strings.ContainsRune("aiueon", rune(c)) {
				b.WriteByte(c)
			}
			double = false
		}
		b.WriteString(syllable)
	}
	return b.String()
}

// contract joins an i-row syllable with a small ya/yu/yo: ki+ゃ -> kya, shi+ゃ -> sha.
func contract(syllable, tail string) string {
	stem := strings.TrimSuffix(syllable, "i")
	switch stem {
	case "sh", "ch", "j":
		return stem + tail
	}
	return stem + "y" + tail
}
