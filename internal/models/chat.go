package models

import "time"

// ChatChannel is a node in the channel tree. ParentID is set exactly once
// at creation; a channel with no parent is a root.
type ChatChannel struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Visibility  string        `json:"visibility"` // public | private
	Status      string        `json:"status"`     // online | offline
	ParentID    string        `json:"parentId,omitempty"`
	SubChannels []ChatChannel `json:"subChannels,omitempty"`
	Messages    []ChatMessage `json:"messages,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	Content   string    `json:"content"`
	// SubChannelID points at a thread channel spawned from this message.
	SubChannelID string    `json:"subChannelId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
