package telegram

import "encoding/json"

// Wire types for the subset of the Telegram Bot API the gateway uses.

type User struct {
	Id        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type Chat struct {
	Id   int64  `json:"id"`
	Type string `json:"type"`
}

type Document struct {
	FileId   string `json:"file_id"`
	FileName string `json:"file_name"`
}

type PhotoSize struct {
	FileId string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Video struct {
	FileId string `json:"file_id"`
}

type Message struct {
	MessageId int64       `json:"message_id"`
	From      *User       `json:"from"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text"`
	Document  *Document   `json:"document"`
	Photo     []PhotoSize `json:"photo"`
	Video     *Video      `json:"video"`
}

type CallbackQuery struct {
	Id      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

type Update struct {
	UpdateId      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

// Button is a single inline keyboard button. Data becomes the callback
// payload delivered on press.
type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

// FileItem is one entry of a media group send.
type FileItem struct {
	FileId string
	Kind   string
}

type apiResponse struct {
	Ok          bool            `json:"ok"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Result      json.RawMessage `json:"result"`
}
