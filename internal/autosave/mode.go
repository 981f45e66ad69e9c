package autosave

import "net/url"

// Mode selects how a session starts: restoring the latest stored record or
// beginning from a blank questionnaire.
type Mode int

const (
	ModeRestore Mode = iota
	ModeFresh
)

func (m Mode) String() string {
	if m == ModeFresh {
		return "fresh"
	}
	return "load"
}

// ParseMode reads the session mode from request query values. `fresh`,
// `mode=fresh` and `blank=1` all select a blank start; `load=1` and
// `mode=load` select restore. Fresh wins when both appear. When neither
// appears, fallback decides ("fresh" means blank, anything else restore).
func ParseMode(query url.Values, fallback string) Mode {
	if query.Has("fresh") || query.Get("mode") == "fresh" || query.Get("blank") == "1" {
		return ModeFresh
	}
	if query.Get("load") == "1" || query.Get("mode") == "load" {
		return ModeRestore
	}
	if fallback == "fresh" {
		return ModeFresh
	}
	return ModeRestore
}
