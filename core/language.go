package core

// Language identifies the learner's target language. It drives the system
// instruction rendered for each chat client and nothing else.
type Language string

const (
	Korean     Language = "Korean"
	Japanese   Language = "Japanese"
	Chinese    Language = "Chinese"
	Spanish    Language = "Spanish"
	French     Language = "French"
	German     Language = "German"
	Italian    Language = "Italian"
	Portuguese Language = "Portuguese"
	Russian    Language = "Russian"
	Arabic     Language = "Arabic"
	Hindi      Language = "Hindi"
	Thai       Language = "Thai"
	Vietnamese Language = "Vietnamese"
	Greek      Language = "Greek"
	Hebrew     Language = "Hebrew"
	Polish     Language = "Polish"
	Dutch      Language = "Dutch"
	Swedish    Language = "Swedish"
	Turkish    Language = "Turkish"
	Ukrainian  Language = "Ukrainian"
)

// DefaultLanguage is used when no language is configured.
const DefaultLanguage = Korean

// writingSystems names the script each supported language is written in, for
// prompt templating.
var writingSystems = map[Language]string{
	Korean:     "Hangul",
	Japanese:   "Japanese scripts (Kanji, Hiragana, Katakana)",
	Chinese:    "Chinese characters",
	Spanish:    "Spanish alphabet",
	French:     "French alphabet",
	German:     "German alphabet",
	Italian:    "Italian alphabet",
	Portuguese: "Portuguese alphabet",
	Russian:    "Russian Cyrillic script",
	Arabic:     "Arabic script",
	Hindi:      "Devanagari script",
	Thai:       "Thai script",
	Vietnamese: "Vietnamese alphabet",
	Greek:      "Greek script",
	Hebrew:     "Hebrew script",
	Polish:     "Polish alphabet",
	Dutch:      "Dutch alphabet",
	Swedish:    "Swedish alphabet",
	Turkish:    "Turkish alphabet",
	Ukrainian:  "Ukrainian Cyrillic script",
}

// WritingSystem returns the name of the script the language is written in.
// Unknown languages fall back to "<language> script".
func (l Language) WritingSystem() string {
	if ws, ok := writingSystems[l]; ok {
		return ws
	}
	return string(l) + " script"
}

// Known reports whether the language is one of the supported set.
func (l Language) Known() bool {
	_, ok := writingSystems[l]
	return ok
}
