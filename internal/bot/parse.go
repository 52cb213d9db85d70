package bot

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Subscribe actions.
const (
	actionAdd    = "add"
	actionList   = "list"
	actionRemove = "remove"
)

const subscribeUsage = "Usage: /subscribe add <url> | list | remove <url>"

var errSubscribeUsage = errors.New("unknown subscribe action")

// ParseCommand splits a "/cmd@botname args" message into the lowercased
// command, the bot it is addressed to (empty when unaddressed) and its
// trimmed arguments. ok is false for non-command text.
func ParseCommand(text string) (cmd, target, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", "", false
	}

	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], text[i:]
	}
	cmd = strings.TrimPrefix(head, "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd, target = cmd[:i], cmd[i+1:]
	}
	if cmd == "" {
		return "", "", "", false
	}
	return strings.ToLower(cmd), target, strings.TrimSpace(rest), true
}

// ParseSubscribeArgs parses "add <url>", "list" or "remove <url>".
// The URL of an add must be an absolute http(s) link.
func ParseSubscribeArgs(args string) (action, feedURL string, err error) {
	parts := strings.Fields(args)
	switch {
	case len(parts) == 1 && parts[0] == actionList:
		return actionList, "", nil
	case len(parts) == 2 && parts[0] == actionAdd:
		if err := ValidateFeedURL(parts[1]); err != nil {
			return "", "", err
		}
		return actionAdd, parts[1], nil
	case len(parts) == 2 && parts[0] == actionRemove:
		return actionRemove, parts[1], nil
	}
	return "", "", errSubscribeUsage
}

// ValidateFeedURL checks that raw is an absolute http or https URL.
func ValidateFeedURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q", raw)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid URL %q: expected an http(s) link", raw)
	}
	return nil
}
