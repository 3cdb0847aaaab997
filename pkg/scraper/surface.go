package scraper

import (
	"context"
	"time"
)

// Surface is the live page the scraper works through. browser.Session
// implements it; tests use a scripted fake.
type Surface interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Submit(ctx context.Context, selector, text string) error
	ClickText(ctx context.Context, selector, text string) (bool, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	ScrollBy(ctx context.Context, pixels int64) error
	ContentHeight(ctx context.Context) (int64, error)
	HTML(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
	Ready(ctx context.Context) (bool, error)
}
