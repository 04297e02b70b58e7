package potlai

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageNames maps locale codes to the names used in prompts.
var LanguageNames = map[string]string{
	"uk_UA": "Ukrainian",
	"en_US": "English (United States)",
	"en_GB": "English (United Kingdom)",
	"de_DE": "German (Germany)",
	"es_ES": "Spanish (Spain)",
	"es_MX": "Spanish (Mexico)",
	"fr_FR": "French (France)",
	"it_IT": "Italian (Italy)",
	"ja_JP": "Japanese (Japan)",
	"pl_PL": "Polish (Poland)",
	"pt_BR": "Portuguese (Brazil)",
	"pt_PT": "Portuguese (Portugal)",
	"zh_CN": "Chinese (Simplified)",
	"zh_TW": "Chinese (Traditional)",
	"cs_CZ": "Czech (Czech Republic)",
	"ka_GE": "Georgian (Georgia)",
	"kk_KZ": "Kazakh (Kazakhstan)",
	"nb_NO": "Norwegian Bokmål (Norway)",
	"tr_TR": "Turkish (Turkey)",
}

// ShortCodeToLocale maps short language codes to full locale codes.
var ShortCodeToLocale = map[string]string{
	"uk": "uk_UA",
	"en": "en_US",
	"de": "de_DE",
	"es": "es_ES",
	"fr": "fr_FR",
	"it": "it_IT",
	"ja": "ja_JP",
	"pl": "pl_PL",
	"pt": "pt_BR",
	"zh": "zh_CN",
	"cs": "cs_CZ",
	"ka": "ka_GE",
	"kk": "kk_KZ",
	"nb": "nb_NO",
	"tr": "tr_TR",
}

// LanguageName returns the English name of a language code. Codes missing
// from LanguageNames are resolved through CLDR display names, and unknown
// codes are returned unchanged.
func LanguageName(code string) string {
	code = NormalizeLocale(code)
	if name, ok := LanguageNames[code]; ok {
		return name
	}
	if locale, ok := ShortCodeToLocale[code]; ok {
		if name, ok := LanguageNames[locale]; ok {
			return name
		}
	}

	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// NormalizeLocale converts a language code to the gettext form ("uk-UA" to
// "uk_UA").
func NormalizeLocale(code string) string {
	return strings.ReplaceAll(strings.TrimSpace(code), "-", "_")
}

// ValidLanguage reports whether code parses as a BCP 47 tag.
func ValidLanguage(code string) bool {
	_, err := language.Parse(strings.ReplaceAll(NormalizeLocale(code), "_", "-"))
	return err == nil
}
