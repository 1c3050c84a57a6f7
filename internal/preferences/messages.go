package preferences

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"filealchemist/internal/models"
)

var portuguese = map[string]string{
	"pending":    "pendente",
	"processing": "processando",
	"done":       "concluído",
	"error":      "erro",

	"unsupported": "formato não suportado",
	"duplicate":   "já está na fila",

	"failed to decode image":                      "falha ao decodificar a imagem",
	"failed to encode image":                      "falha ao codificar a imagem",
	"image exceeds max dimension of 8000px":       "a imagem excede a dimensão máxima de 8000px",
	"target size exceeds max dimension of 8000px": "o tamanho final excede a dimensão máxima de 8000px",
	"original file is no longer available":        "o arquivo original não está mais disponível",
	"failed to store converted file":              "falha ao salvar o arquivo convertido",
	"conversion was interrupted":                  "a conversão foi interrompida",
}

func init() {
	for key, tr := range portuguese {
		_ = message.SetString(language.English, key, key)
		_ = message.SetString(language.Portuguese, key, tr)
	}
}

// Translate returns the localized text for a known message and msg itself
// for anything else.
func Translate(lang Language, msg string) string {
	if _, ok := portuguese[msg]; !ok {
		return msg
	}
	return message.NewPrinter(lang.Tag()).Sprintf(msg)
}

func StatusLabel(lang Language, s models.JobStatus) string {
	return Translate(lang, string(s))
}
