package bot

import (
	"strings"

	"freopen_bot/internal/model"
)

const helpText = `Send me a photo, or reply to one, and I will decorate it.

/mirror — decorate the replied photo, mirrored
/subscribe add <url> — follow an RSS or Atom feed
/subscribe list — show the feeds of this chat
/subscribe remove <url> — stop following a feed`

// FormatEntry formats a feed entry for delivery: its link, which the
// platform previews, or its title when it has none.
func FormatEntry(e model.FeedEntry) string {
	switch {
	case e.Link != "":
		return e.Link
	case e.Title != "":
		return e.Title
	default:
		return e.ID
	}
}

// FormatSubscriptionList formats the feeds of a chat for display.
func FormatSubscriptionList(subs []model.Subscription) string {
	if len(subs) == 0 {
		return "No subscriptions yet. Use /subscribe add <url> to add one."
	}
	var b strings.Builder
	b.WriteString("List of your subs:\n")
	for _, s := range subs {
		b.WriteString("\n")
		b.WriteString(s.URL)
	}
	return b.String()
}
