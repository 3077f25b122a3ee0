package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeGerman  locale = "de"
)

type messages struct {
	correcting string
	speaking   string
	errorText  string
}

var catalog = map[locale]messages{
	localeEnglish: {
		correcting: "Correcting grammar…",
		speaking:   "Speaking…",
		errorText:  "Voice assistant error",
	},
	localeGerman: {
		correcting: "Grammatik wird korrigiert…",
		speaking:   "Sprachausgabe…",
		errorText:  "Sprachassistent-Fehler",
	},
}

// indicatorMessagesFromEnv follows POSIX precedence: LC_ALL, LC_MESSAGES, LANG.
func indicatorMessagesFromEnv() messages {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return indicatorMessages(resolveLocale(value))
		}
	}
	return indicatorMessages(localeEnglish)
}

// resolveLocale maps values like "de_AT.UTF-8" to a supported language.
func resolveLocale(raw string) locale {
	lang, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), "_")
	lang, _, _ = strings.Cut(lang, ".")
	if _, ok := catalog[locale(lang)]; ok {
		return locale(lang)
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	if msg, ok := catalog[tag]; ok {
		return msg
	}
	return catalog[localeEnglish]
}
