package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"regsniper/internal/logbus"
	"regsniper/internal/model"
	"regsniper/internal/portal"
)

var ErrNoTab = errors.New("no portal tab attached")

type SessionOptions struct {
	Browser  *Browser
	StartURL string
	// Host scopes the cookies that are saved and restored.
	Host    string
	Cookies CookieStore
	Bus     *logbus.Bus
	// OnLoad runs on its own goroutine after every load event of the tab.
	OnLoad func(url string)
}

// Session owns the single tab the agent works in and reports its loads.
type Session struct {
	opts SessionOptions

	mu        sync.Mutex
	tab       *rod.Page
	stopWatch context.CancelFunc
}

func NewSession(opts SessionOptions) *Session {
	return &Session{opts: opts}
}

// Page returns a portal.Page that always addresses the current tab, so it
// stays valid across re-attachment.
func (s *Session) Page() portal.Page {
	return sessionPage{s: s}
}

// Attach opens the portal tab unless a live one is already attached, and
// reports whether a new tab was opened.
func (s *Session) Attach(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tab != nil {
		if _, err := s.tab.Context(ctx).Info(); err == nil {
			return false, nil
		}
		s.detachLocked()
	}
	if s.opts.Browser == nil || s.opts.Browser.rod == nil {
		return false, errors.New("browser not started")
	}

	s.restoreCookies(ctx)

	tab, err := s.newTab()
	if err != nil {
		return false, fmt.Errorf("open tab: %w", err)
	}
	watchCtx, cancel := context.WithCancel(context.Background())
	wait := tab.Context(watchCtx).EachEvent(func(*proto.PageLoadEventFired) {
		go s.handleLoad(tab)
	})
	go wait()

	s.tab = tab
	s.stopWatch = cancel

	if s.opts.StartURL != "" {
		if err := tab.Context(ctx).Navigate(s.opts.StartURL); err != nil {
			s.log("warn", "navigate to start page failed", map[string]any{
				"url":   s.opts.StartURL,
				"error": err.Error(),
			})
		}
	}
	s.log("info", "portal tab attached", map[string]any{"url": s.opts.StartURL})
	return true, nil
}

// ActiveURL is the URL of the attached tab.
func (s *Session) ActiveURL(ctx context.Context) (string, error) {
	tab := s.current()
	if tab == nil {
		return "", ErrNoTab
	}
	info, err := tab.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// SaveCookies persists the cookies of the portal host.
func (s *Session) SaveCookies(ctx context.Context) error {
	if s.opts.Cookies == nil || s.opts.Browser == nil {
		return nil
	}
	raw, err := s.opts.Browser.rod.GetCookies()
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}
	cookies := model.FilterLiveCookies(fromNetworkCookies(raw), s.opts.Host, time.Now().UnixMilli())
	return s.opts.Cookies.SaveCookies(ctx, cookies)
}

func (s *Session) Close() error {
	s.mu.Lock()
	tab := s.tab
	s.detachLocked()
	s.mu.Unlock()
	if tab == nil {
		return nil
	}
	return tab.Close()
}

func (s *Session) newTab() (*rod.Page, error) {
	b := s.opts.Browser
	if b.stealth {
		return stealth.Page(b.rod)
	}
	return b.rod.Page(proto.TargetCreateTarget{})
}

func (s *Session) restoreCookies(ctx context.Context) {
	if s.opts.Cookies == nil {
		return
	}
	saved, err := s.opts.Cookies.LoadCookies(ctx)
	if err != nil {
		s.log("warn", "load saved cookies failed", map[string]any{"error": err.Error()})
		return
	}
	live := model.FilterLiveCookies(saved, s.opts.Host, time.Now().UnixMilli())
	if len(live) == 0 {
		return
	}
	if err := s.opts.Browser.rod.SetCookies(toCookieParams(live)); err != nil {
		s.log("warn", "restore cookies failed", map[string]any{"error": err.Error()})
		return
	}
	s.log("info", "restored portal cookies", map[string]any{"count": len(live)})
}

func (s *Session) handleLoad(tab *rod.Page) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := tab.Context(ctx).Info()
	if err != nil {
		return
	}
	if err := s.SaveCookies(ctx); err != nil {
		s.log("warn", "save cookies failed", map[string]any{"error": err.Error()})
	}
	s.log("debug", "page loaded", map[string]any{"url": info.URL})
	if s.opts.OnLoad != nil {
		s.opts.OnLoad(info.URL)
	}
}

func (s *Session) current() *rod.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

func (s *Session) detachLocked() {
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	s.tab = nil
}

func (s *Session) log(level, msg string, fields map[string]any) {
	if s.opts.Bus != nil {
		s.opts.Bus.Log(level, msg, fields)
	}
}

type sessionPage struct {
	s *Session
}

func (p sessionPage) page() (*Page, error) {
	tab := p.s.current()
	if tab == nil {
		return nil, ErrNoTab
	}
	return NewPage(tab), nil
}

func (p sessionPage) URL(ctx context.Context) (string, error) {
	pg, err := p.page()
	if err != nil {
		return "", err
	}
	return pg.URL(ctx)
}

func (p sessionPage) Elements(ctx context.Context, selector string) ([]portal.Element, error) {
	pg, err := p.page()
	if err != nil {
		return nil, err
	}
	return pg.Elements(ctx, selector)
}

func (p sessionPage) WaitElement(ctx context.Context, selector string) (portal.Element, error) {
	pg, err := p.page()
	if err != nil {
		return nil, err
	}
	return pg.WaitElement(ctx, selector)
}
