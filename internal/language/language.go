package language

import (
	"strings"

	"golang.org/x/text/cases"
	xlanguage "golang.org/x/text/language"
)

type entry struct {
	code2 string   // ISO 639-1 (2-letter)
	code3 string   // ISO 639-2 primary (3-letter)
	alt3  []string // other 3-letter codes that collapse onto code2 (bibliographic, macro members)
	words []string // lowercase names as written by metadata sites; words[0] is the display form
}

var languages = []entry{
	{"en", "eng", nil, []string{"english"}},
	{"es", "spa", nil, []string{"spanish", "castilian"}},
	{"fr", "fra", []string{"fre"}, []string{"french"}},
	{"de", "deu", []string{"ger"}, []string{"german"}},
	{"it", "ita", nil, []string{"italian"}},
	{"pt", "por", nil, []string{"portuguese"}},
	{"ja", "jpn", nil, []string{"japanese"}},
	{"ko", "kor", nil, []string{"korean"}},
	{"zh", "zho", []string{"chi", "cmn", "yue"}, []string{"chinese", "mandarin", "cantonese"}},
	{"ru", "rus", nil, []string{"russian"}},
	{"ar", "ara", nil, []string{"arabic"}},
	{"hi", "hin", nil, []string{"hindi"}},
	{"th", "tha", nil, []string{"thai"}},
	{"nl", "nld", []string{"dut"}, []string{"dutch", "flemish"}},
	{"pl", "pol", nil, []string{"polish"}},
	{"sv", "swe", nil, []string{"swedish"}},
	{"da", "dan", nil, []string{"danish"}},
	{"no", "nor", []string{"nob", "nno"}, []string{"norwegian"}},
	{"fi", "fin", nil, []string{"finnish"}},
	{"cs", "ces", []string{"cze"}, []string{"czech"}},
	{"hu", "hun", nil, []string{"hungarian"}},
	{"tr", "tur", nil, []string{"turkish"}},
	{"el", "ell", []string{"gre"}, []string{"greek"}},
	{"vi", "vie", nil, []string{"vietnamese"}},
	{"id", "ind", nil, []string{"indonesian"}},
	{"ms", "msa", []string{"may"}, []string{"malay"}},
	{"tl", "tgl", []string{"fil"}, []string{"tagalog", "filipino"}},
	{"he", "heb", nil, []string{"hebrew"}},
	{"fa", "fas", []string{"per"}, []string{"persian", "farsi"}},
	{"ur", "urd", nil, []string{"urdu"}},
	{"bn", "ben", nil, []string{"bengali"}},
	{"ta", "tam", nil, []string{"tamil"}},
	{"te", "tel", nil, []string{"telugu"}},
	{"mr", "mar", nil, []string{"marathi"}},
	{"gu", "guj", nil, []string{"gujarati"}},
	{"pa", "pan", nil, []string{"punjabi"}},
	{"uk", "ukr", nil, []string{"ukrainian"}},
	{"ro", "ron", []string{"rum"}, []string{"romanian"}},
	{"bg", "bul", nil, []string{"bulgarian"}},
	{"hr", "hrv", nil, []string{"croatian"}},
	{"sr", "srp", nil, []string{"serbian"}},
	{"sl", "slv", nil, []string{"slovenian"}},
	{"sk", "slk", []string{"slo"}, []string{"slovak"}},
	{"et", "est", nil, []string{"estonian"}},
	{"lv", "lav", nil, []string{"latvian"}},
	{"lt", "lit", nil, []string{"lithuanian"}},
}

// Index maps built at init time.
var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages)*2)
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		for _, alt := range e.alt3 {
			byCode3[alt] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// Normalize maps ISO 639-2/3 codes and language names to ISO 639-1.
// Unrecognized two- or three-letter alphabetic codes pass through lower-cased;
// anything else yields the empty string. Normalize is idempotent.
func Normalize(raw string) string {
	code := strings.ToLower(strings.TrimSpace(raw))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if (len(code) == 2 || len(code) == 3) && isAlpha(code) {
		return code
	}
	return ""
}

// IsKnownName reports whether word is a language name in the table.
func IsKnownName(word string) bool {
	_, ok := byWord[strings.ToLower(strings.TrimSpace(word))]
	return ok
}

// ToISO3 converts any recognized language code to ISO 639-2 (3-letter).
// Returns "und" for unrecognized 2-letter codes, passes through 3-letter codes.
func ToISO3(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "und"
	}
	if e := lookup(code); e != nil {
		return e.code3
	}
	if len(code) == 3 {
		return code
	}
	return "und"
}

// DisplayName returns a human-readable language name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return cases.Title(xlanguage.Und).String(e.words[0])
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeList deduplicates and normalizes a list of language codes to ISO 639-1.
// The result is never nil.
func NormalizeList(codes []string) []string {
	normalized := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, raw := range codes {
		code := Normalize(raw)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		normalized = append(normalized, code)
	}
	return normalized
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
