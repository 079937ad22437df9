package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.MustParse("pt-BR")

	message.SetString(lang, "notice.disconnected.bot", "%s perdeu a conexão. Um bot joga os turnos dele até que volte.")
	message.SetString(lang, "notice.disconnected.waiting", "%s perdeu a conexão. Aguardando seu retorno.")
	message.SetString(lang, "notice.reconnected.resumed", "%s voltou e assumiu o controle do bot.")
	message.SetString(lang, "notice.reconnected", "%s voltou.")
	message.SetString(lang, "notice.left.bot", "%s saiu da sessão. Um bot joga o assento dele até o fim do jogo.")
	message.SetString(lang, "notice.left", "%s saiu da sessão.")
	message.SetString(lang, "notice.leader_changed", "%s agora lidera a sessão.")
	message.SetString(lang, "notice.session_closed.abandoned", "A sessão foi encerrada porque todos saíram.")
	message.SetString(lang, "notice.session_closed", "A sessão terminou.")
}
