package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"
)

// Renderer returns the HTML of a page after its scripts have run.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// BrowserRenderer renders pages in a headless Chrome driven by go-rod.
// A browser is launched per call and torn down afterwards.
type BrowserRenderer struct {
	Timeout time.Duration
}

func (b *BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bin, _ := launcher.LookPath()
	l := launcher.New().Bin(bin).Headless(true)
	defer l.Cleanup()

	controlURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("load page: %w", err)
	}
	// Late scripts may still be mutating the DOM; take what is there.
	_ = page.WaitStable(time.Second)

	return page.HTML()
}

// pageSummary is what the scraper reports about a document.
type pageSummary struct {
	Title string
	Text  string
}

func summarizeHTML(doc string) (pageSummary, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return pageSummary{}, fmt.Errorf("parse html: %w", err)
	}
	var s pageSummary
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				if n.Data == "head" {
					findTitle(n, &s)
				}
				return
			case "title":
				if s.Title == "" && n.FirstChild != nil {
					s.Title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	s.Text = sb.String()
	return s, nil
}

func findTitle(n *html.Node, s *pageSummary) {
	if s.Title != "" {
		return
	}
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		s.Title = strings.TrimSpace(n.FirstChild.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		findTitle(c, s)
	}
}

var _ Renderer = (*BrowserRenderer)(nil)
