package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "notice.disconnected.bot", "%s lost connection. A bot is playing their turns until they return.")
	message.SetString(lang, "notice.disconnected.waiting", "%s lost connection. Waiting for them to return.")
	message.SetString(lang, "notice.reconnected.resumed", "%s is back and has taken over from the bot.")
	message.SetString(lang, "notice.reconnected", "%s is back.")
	message.SetString(lang, "notice.left.bot", "%s left the session. A bot is playing their seat for the rest of the game.")
	message.SetString(lang, "notice.left", "%s left the session.")
	message.SetString(lang, "notice.leader_changed", "%s is now the session leader.")
	message.SetString(lang, "notice.session_closed.abandoned", "The session closed because everyone left.")
	message.SetString(lang, "notice.session_closed", "The session has ended.")
}
