package delivery

import "context"

// Messenger relays content back to the requesting chat
type Messenger interface {
	ReplyText(ctx context.Context, text string) error
	ReplyPhoto(ctx context.Context, path, caption string) error
	ReplyVideo(ctx context.Context, path, caption string) error
}

// StatusEditor is implemented by messengers that can rewrite the most recent
// status message in place instead of sending a new one.
type StatusEditor interface {
	EditStatus(ctx context.Context, text string) error
}

// PageSource fetches the public page for a username
type PageSource interface {
	FetchProfilePage(ctx context.Context, username string) (string, error)
}

// MediaFetcher downloads media to local assets and releases them
type MediaFetcher interface {
	Fetch(ctx context.Context, url, name string) (string, bool)
	Release(path string)
}
