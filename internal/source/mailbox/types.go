package mailbox

import "time"

// Envelope holds the parsed envelope data from an IMAP message.
type Envelope struct {
	MessageID string
	Subject   string
	From      string
	Date      time.Time
	UID       uint32
}

// Message is an announcement mail with its decoded text body.
type Message struct {
	Envelope Envelope
	TextBody string
	HTMLBody string
}
