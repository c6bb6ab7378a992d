// Package language holds the fixed set of translation targets offered by the
// language picker.
package language

import "strings"

type Language struct {
	Label string
	Code  string
}

var all = []Language{
	{"Albanian", "sq"},
	{"Amharic", "am"},
	{"Arabic", "ar"},
	{"Armenian", "hy"},
	{"Azerbaijani", "az"},
	{"Basque", "eu"},
	{"Bengali", "bn"},
	{"Bosnian", "bs"},
	{"Bulgarian", "bg"},
	{"Burmese / Myanmar", "my"},
	{"Catalan", "ca"},
	{"Chinese (Simplified)", "zh"},
	{"Chinese (Traditional)", "zh-TW"},
	{"Croatian", "hr"},
	{"Czech", "cs"},
	{"Danish", "da"},
	{"Dutch", "nl"},
	{"English", "en"},
	{"Estonian", "et"},
	{"Filipino / Tagalog", "tl"},
	{"Finnish", "fi"},
	{"French", "fr"},
	{"Galician", "gl"},
	{"Georgian", "ka"},
	{"German", "de"},
	{"Greek", "el"},
	{"Gujarati", "gu"},
	{"Haitian Creole", "ht"},
	{"Hebrew", "he"},
	{"Hindi", "hi"},
	{"Hungarian", "hu"},
	{"Icelandic", "is"},
	{"Igbo", "ig"},
	{"Indonesian", "id"},
	{"Irish", "ga"},
	{"Italian", "it"},
	{"Japanese", "ja"},
	{"Kannada", "kn"},
	{"Kazakh", "kk"},
	{"Khmer", "km"},
	{"Korean", "ko"},
	{"Lao", "lo"},
	{"Latvian", "lv"},
	{"Lithuanian", "lt"},
	{"Macedonian", "mk"},
	{"Malay", "ms"},
	{"Malay (Brunei)", "ms-BN"},
	{"Malayalam", "ml"},
	{"Marathi", "mr"},
	{"Mongolian", "mn"},
	{"Nepali", "ne"},
	{"Norwegian", "no"},
	{"Pashto", "ps"},
	{"Persian / Farsi", "fa"},
	{"Polish", "pl"},
	{"Portuguese", "pt"},
	{"Punjabi", "pa"},
	{"Romanian", "ro"},
	{"Russian", "ru"},
	{"Scottish Gaelic", "gd"},
	{"Serbian (Cyrillic)", "sr-Cyrl"},
	{"Serbian (Latin)", "sr-Latn"},
	{"Sinhala", "si"},
	{"Slovak", "sk"},
	{"Slovenian", "sl"},
	{"Spanish", "es"},
	{"Swahili", "sw"},
	{"Swedish", "sv"},
	{"Tajik", "tg"},
	{"Tamil", "ta"},
	{"Telugu", "te"},
	{"Thai", "th"},
	{"Turkish", "tr"},
	{"Ukrainian", "uk"},
	{"Urdu", "ur"},
	{"Uzbek", "uz"},
	{"Vietnamese", "vi"},
	{"Welsh", "cy"},
	{"Xhosa", "xh"},
	{"Yoruba", "yo"},
	{"Zulu", "zu"},
}

var byCode = func() map[string]Language {
	m := make(map[string]Language, len(all))
	for _, l := range all {
		m[strings.ToLower(l.Code)] = l
	}
	return m
}()

// All returns the picker entries in display order.
func All() []Language {
	out := make([]Language, len(all))
	copy(out, all)
	return out
}

// Lookup is case-insensitive on the code.
func Lookup(code string) (Language, bool) {
	l, ok := byCode[strings.ToLower(strings.TrimSpace(code))]
	return l, ok
}

func Valid(code string) bool {
	_, ok := Lookup(code)
	return ok
}

// Label returns the display name for code, or code itself when unknown.
func Label(code string) string {
	if l, ok := Lookup(code); ok {
		return l.Label
	}
	return code
}

// Search returns entries whose label or code contains q, ignoring case.
func Search(q string) []Language {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return All()
	}
	var out []Language
	for _, l := range all {
		if strings.Contains(strings.ToLower(l.Label), q) || strings.ToLower(l.Code) == q {
			out = append(out, l)
		}
	}
	return out
}
