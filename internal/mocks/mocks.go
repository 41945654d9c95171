// Package mocks provides testify mocks for the interfaces the flows
// depend on, so every flow is testable without a browser or network.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
)

// -- Browser Surface Mock --

// MockSurface mocks the browser.Surface interface.
type MockSurface struct {
	mock.Mock
}

func (m *MockSurface) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockSurface) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSurface) Reload(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSurface) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return m.Called(ctx, selector, timeout).Error(0)
}

func (m *MockSurface) Exists(ctx context.Context, selector string) (bool, error) {
	args := m.Called(ctx, selector)
	return args.Bool(0), args.Error(1)
}

func (m *MockSurface) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockSurface) Type(ctx context.Context, selector, text string) error {
	return m.Called(ctx, selector, text).Error(0)
}

func (m *MockSurface) PressKey(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockSurface) ScrollBy(ctx context.Context, dx, dy float64) error {
	return m.Called(ctx, dx, dy).Error(0)
}

func (m *MockSurface) Text(ctx context.Context, selector string) (string, bool, error) {
	args := m.Called(ctx, selector)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockSurface) AttributeValue(ctx context.Context, selector, attribute string) (string, bool, error) {
	args := m.Called(ctx, selector, attribute)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockSurface) OuterHTML(ctx context.Context, selector string) (string, error) {
	args := m.Called(ctx, selector)
	return args.String(0), args.Error(1)
}

func (m *MockSurface) Evaluate(ctx context.Context, expression string, out any) error {
	args := m.Called(ctx, expression, out)
	return args.Error(0)
}

func (m *MockSurface) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockSurface) Cookies(ctx context.Context) ([]schemas.Cookie, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.Cookie), args.Error(1)
}

func (m *MockSurface) SetCookies(ctx context.Context, cookies []schemas.Cookie) error {
	return m.Called(ctx, cookies).Error(0)
}

func (m *MockSurface) SetCookie(ctx context.Context, cookie schemas.Cookie) error {
	return m.Called(ctx, cookie).Error(0)
}

func (m *MockSurface) LocalStorage(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockSurface) SetLocalStorage(ctx context.Context, items map[string]string) error {
	return m.Called(ctx, items).Error(0)
}

func (m *MockSurface) SessionStorage(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockSurface) SetSessionStorage(ctx context.Context, items map[string]string) error {
	return m.Called(ctx, items).Error(0)
}

func (m *MockSurface) UserAgent(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSurface) SetUserAgent(ctx context.Context, ua string) error {
	return m.Called(ctx, ua).Error(0)
}

func (m *MockSurface) ClearBrowserData(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSurface) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// -- Transcriber Mock --

// MockTranscriber mocks the captcha.Transcriber interface.
type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	args := m.Called(ctx, audio)
	return args.String(0), args.Error(1)
}

// -- Session Repository Mock --

// MockSessionRepository mocks the auth.SessionRepository interface.
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Save(ctx context.Context, record *schemas.SessionRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockSessionRepository) Load(ctx context.Context, username string) (*schemas.SessionRecord, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.SessionRecord), args.Error(1)
}

func (m *MockSessionRepository) MarkUsed(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *MockSessionRepository) Invalidate(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *MockSessionRepository) Delete(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}
