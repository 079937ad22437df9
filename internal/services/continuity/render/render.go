// Package render produces the player-facing text for continuity notices.
package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ResolveTag maps a session locale string to a supported language tag.
// Unknown or empty locales fall back to English.
func ResolveTag(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	base, _ := tag.Base()
	portugueseBase, _ := language.Portuguese.Base()
	if base == portugueseBase {
		return language.MustParse("pt-BR")
	}
	return language.English
}

// Disconnected returns the broadcast copy for a participant losing their
// connection. The bot variant is used once a takeover has activated.
func Disconnected(tag language.Tag, name string, botActive bool) string {
	p := message.NewPrinter(tag)
	if botActive {
		return p.Sprintf("notice.disconnected.bot", name)
	}
	return p.Sprintf("notice.disconnected.waiting", name)
}

// Reconnected returns the broadcast copy for a participant returning.
func Reconnected(tag language.Tag, name string, resumedControl bool) string {
	p := message.NewPrinter(tag)
	if resumedControl {
		return p.Sprintf("notice.reconnected.resumed", name)
	}
	return p.Sprintf("notice.reconnected", name)
}

// Left returns the broadcast copy for a participant leaving for good.
func Left(tag language.Tag, name string, botTakesSeat bool) string {
	p := message.NewPrinter(tag)
	if botTakesSeat {
		return p.Sprintf("notice.left.bot", name)
	}
	return p.Sprintf("notice.left", name)
}

// LeaderChanged returns the broadcast copy for leadership moving to a
// new participant.
func LeaderChanged(tag language.Tag, name string) string {
	p := message.NewPrinter(tag)
	return p.Sprintf("notice.leader_changed", name)
}

// SessionClosed returns the broadcast copy for a session shutting down.
func SessionClosed(tag language.Tag, abandoned bool) string {
	p := message.NewPrinter(tag)
	if abandoned {
		return p.Sprintf("notice.session_closed.abandoned")
	}
	return p.Sprintf("notice.session_closed")
}
