package model

// ReplyChunk is one transport-sized segment of an answer, queued for
// asynchronous delivery. Seq/Total let the consumer keep chunks in order.
type ReplyChunk struct {
	ChatID int64  `json:"chat_id"`
	UserID int64  `json:"user_id"`
	Seq    int    `json:"seq"`
	Total  int    `json:"total"`
	Body   string `json:"body"`
}
