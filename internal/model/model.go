// Package model defines the domain types used across the application.
package model

// UpdateKind discriminates the payload of an inbound Update.
type UpdateKind int

// Supported update kinds.
const (
	KindOther UpdateKind = iota
	KindMessage
	KindChannelPost
)

func (k UpdateKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindChannelPost:
		return "channel_post"
	default:
		return "other"
	}
}

// Update is one inbound event fetched from the bot platform.
// Message is set only for KindMessage and KindChannelPost.
type Update struct {
	ID      int64
	Kind    UpdateKind
	Message *Message
}

// Message is a chat message or channel post.
type Message struct {
	ID      int64
	ChatID  int64
	Text    string
	Caption string
	Photo   []PhotoSize
	ReplyTo *Message
}

// PhotoSize is one resolution of a photo. The platform sends sizes in
// ascending order, so the last element is the largest.
type PhotoSize struct {
	FileID string
	Width  int
	Height int
}

// PhotoRef identifies a photo that can be downloaded from the platform.
type PhotoRef struct {
	FileID string
}

// ResolvePhotoSource returns the photo an update refers to: the message's own
// photo, or else the photo of the message it replies to.
func ResolvePhotoSource(u Update) (PhotoRef, bool) {
	if u.Message == nil {
		return PhotoRef{}, false
	}
	if ref, ok := largestPhoto(u.Message); ok {
		return ref, true
	}
	if u.Message.ReplyTo != nil {
		return largestPhoto(u.Message.ReplyTo)
	}
	return PhotoRef{}, false
}

func largestPhoto(m *Message) (PhotoRef, bool) {
	if len(m.Photo) == 0 {
		return PhotoRef{}, false
	}
	return PhotoRef{FileID: m.Photo[len(m.Photo)-1].FileID}, true
}

// Subscription is one feed followed by a chat. LastEntry is the identifier of
// the newest delivered entry, empty when nothing has been delivered yet.
type Subscription struct {
	ChatID    int64
	URL       string
	LastEntry string
}

// FeedEntry is a single item of a fetched feed.
type FeedEntry struct {
	ID    string
	Title string
	Link  string
}
