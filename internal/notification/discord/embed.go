package discord

import (
	"time"
)

// WebhookMessage는 Discord 웹훅 요청 본문입니다
type WebhookMessage struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed는 Discord 임베드입니다
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// Discord가 한 임베드에 허용하는 필드 수
const maxEmbedFields = 25

// newEmbed는 공통 푸터와 현재 시각이 채워진 임베드를 만듭니다
func newEmbed(title, description string, color int) *Embed {
	return &Embed{
		Title:       title,
		Description: description,
		Color:       color,
		Footer:      &EmbedFooter{Text: footer},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// inline은 짧은 값 필드를 추가합니다. 필드 수 제한을 넘으면 무시합니다.
func (e *Embed) inline(name, value string) *Embed {
	return e.field(name, value, true)
}

func (e *Embed) field(name, value string, inline bool) *Embed {
	if len(e.Fields) < maxEmbedFields {
		e.Fields = append(e.Fields, EmbedField{Name: name, Value: value, Inline: inline})
	}
	return e
}
