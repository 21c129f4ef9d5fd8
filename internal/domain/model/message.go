package model

import "time"

// InboundMessage is a chat message received from a contact.
type InboundMessage struct {
	CompanyID           string
	Phone               string
	Text                string
	ReceivedAt          time.Time
	FirstInConversation bool
}

// OutboundMedia describes a media message sent through the gateway.
type OutboundMedia struct {
	URL     string
	Type    string // image, video, audio, document
	Caption string
}

// LinkPreview is the metadata extracted from a shared URL.
type LinkPreview struct {
	URL         string
	Domain      string
	Title       string
	Description string
	Image       string
	Fallback    bool
}
