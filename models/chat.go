package models

import "time"

// QueryAnswer is one question/answer pair of the chat history.
// Text may be an error description; it is shown to the user either way.
type QueryAnswer struct {
	ID       string    `json:"id"`
	Question string    `json:"question"`
	Text     string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}
