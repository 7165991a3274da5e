package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

func TestIsBrowser(t *testing.T) {
	for _, app := range []string{"Google Chrome", "firefox", "Safari", "msedge.exe", " Brave Browser "} {
		assert.True(t, IsBrowser(app), app)
	}
	for _, app := range []string{"Microsoft Excel", "Terminal", event.Unknown, ""} {
		assert.False(t, IsBrowser(app), app)
	}
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, "Inbox (3)", PageTitle("Inbox (3) - Google Chrome"))
	assert.Equal(t, "Docs", PageTitle("Docs — Mozilla Firefox"))
	assert.Equal(t, "Untitled", PageTitle("Untitled"))
}

func TestTitleLocator(t *testing.T) {
	tab, err := TitleLocator{}.ActiveTab(context.Background(), "Example Domain - Google Chrome")
	require.NoError(t, err)
	assert.Equal(t, Tab{Title: "Example Domain"}, tab)

	_, err = TitleLocator{}.ActiveTab(context.Background(), event.Unknown)
	assert.ErrorIs(t, err, ErrNoTab)
}

func TestChooseTab(t *testing.T) {
	_, err := chooseTab(nil)
	assert.ErrorIs(t, err, ErrNoTab)

	tab, err := chooseTab([]Tab{{URL: "https://a"}, {URL: "https://b"}})
	require.NoError(t, err)
	assert.Equal(t, "https://a", tab.URL)
}

func TestDevToolsUnreachable(t *testing.T) {
	d := NewDevTools("http://127.0.0.1:1")
	defer d.Close()
	assert.Error(t, d.Ping())
	_, err := d.ActiveTab(context.Background(), "x")
	assert.Error(t, err)
}
