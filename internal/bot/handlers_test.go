package bot

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"freopen_bot/internal/model"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantCmd    string
		wantTarget string
		wantArgs   string
		wantOK     bool
	}{
		{name: "bare command", text: "/start", wantCmd: "start", wantOK: true},
		{name: "with args", text: "/subscribe add https://foxes.example.com/rss", wantCmd: "subscribe", wantArgs: "add https://foxes.example.com/rss", wantOK: true},
		{name: "bot mention", text: "/mirror@freopen_bot", wantCmd: "mirror", wantTarget: "freopen_bot", wantOK: true},
		{name: "bot mention with args", text: "/subscribe@freopen_bot list", wantCmd: "subscribe", wantTarget: "freopen_bot", wantArgs: "list", wantOK: true},
		{name: "other bot mention", text: "/Help@Other_Bot now", wantCmd: "help", wantTarget: "Other_Bot", wantArgs: "now", wantOK: true},
		{name: "uppercase", text: "/HELP", wantCmd: "help", wantOK: true},
		{name: "newline separator", text: "/subscribe\nlist", wantCmd: "subscribe", wantArgs: "list", wantOK: true},
		{name: "surrounding space", text: "  /help  ", wantCmd: "help", wantOK: true},
		{name: "plain text", text: "look at this fox"},
		{name: "empty", text: ""},
		{name: "lone slash", text: "/"},
		{name: "only mention", text: "/@freopen_bot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, target, args, ok := ParseCommand(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.wantCmd, cmd); diff != "" {
				t.Errorf("cmd mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantTarget, target); diff != "" {
				t.Errorf("target mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantArgs, args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSubscribeArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       string
		wantAction string
		wantURL    string
		wantErr    bool
	}{
		{name: "add", args: "add https://foxes.example.com/rss", wantAction: "add", wantURL: "https://foxes.example.com/rss"},
		{name: "add http", args: "add http://foxes.example.com/atom.xml", wantAction: "add", wantURL: "http://foxes.example.com/atom.xml"},
		{name: "list", args: "list", wantAction: "list"},
		{name: "remove", args: "remove https://foxes.example.com/rss", wantAction: "remove", wantURL: "https://foxes.example.com/rss"},
		{name: "remove anything stored", args: "remove foxes", wantAction: "remove", wantURL: "foxes"},
		{name: "add relative url", args: "add /rss", wantErr: true},
		{name: "add ftp url", args: "add ftp://foxes.example.com/rss", wantErr: true},
		{name: "add without host", args: "add https://", wantErr: true},
		{name: "add without url", args: "add", wantErr: true},
		{name: "add two urls", args: "add https://a.example.com https://b.example.com", wantErr: true},
		{name: "list with extra", args: "list all", wantErr: true},
		{name: "unknown action", args: "pause https://foxes.example.com/rss", wantErr: true},
		{name: "empty", args: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, url, err := ParseSubscribeArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got action=%q url=%q", action, url)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantAction, action); diff != "" {
				t.Errorf("action mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantURL, url); diff != "" {
				t.Errorf("url mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry model.FeedEntry
		want  string
	}{
		{"link", model.FeedEntry{ID: "fox-5", Title: "Fox spotted", Link: "https://foxes.example.com/posts/5"}, "https://foxes.example.com/posts/5"},
		{"title without link", model.FeedEntry{ID: "fox-5", Title: "Fox spotted"}, "Fox spotted"},
		{"id only", model.FeedEntry{ID: "fox-5"}, "fox-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FormatEntry(tt.entry)); diff != "" {
				t.Errorf("FormatEntry() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatSubscriptionList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if diff := cmp.Diff("No subscriptions yet. Use /subscribe add <url> to add one.", FormatSubscriptionList(nil)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("several", func(t *testing.T) {
		got := FormatSubscriptionList([]model.Subscription{
			{ChatID: 1, URL: "https://a.example.com/rss"},
			{ChatID: 1, URL: "https://b.example.com/atom", LastEntry: "b-9"},
		})
		want := "List of your subs:\n\nhttps://a.example.com/rss\nhttps://b.example.com/atom"
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}
