package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
	"github.com/Jasmitsingh01/tiktok/internal/browser"
	"github.com/Jasmitsingh01/tiktok/internal/config"
	"github.com/Jasmitsingh01/tiktok/internal/mocks"
	"github.com/Jasmitsingh01/tiktok/internal/store"
)

// stubSolver scripts the captcha gate. Presence answers are consumed in
// order; the last one repeats.
type stubSolver struct {
	present    []bool
	presentIdx int
	solved     bool
	solveErr   error
	solveCalls int
}

func (s *stubSolver) Present(context.Context, browser.Surface) (bool, error) {
	if len(s.present) == 0 {
		return false, nil
	}
	p := s.present[s.presentIdx]
	if s.presentIdx < len(s.present)-1 {
		s.presentIdx++
	}
	return p, nil
}

func (s *stubSolver) Solve(context.Context, browser.Surface) (bool, error) {
	s.solveCalls++
	return s.solved, s.solveErr
}

type stubRetriever struct {
	code  string
	err   error
	email string
}

func (s *stubRetriever) RetrieveCode(_ context.Context, email string) (string, error) {
	s.email = email
	return s.code, s.err
}

func testPlatformConfig() config.PlatformConfig {
	return config.PlatformConfig{
		LoginURL: "https://www.tiktok.com/login/phone-or-email/email",
		FeedURL:  "https://www.tiktok.com/foryou",
		Selectors: config.SelectorsConfig{
			UsernameInput:       `input[name="username"]`,
			PasswordInput:       `input[type="password"]`,
			VerificationInput:   "input.code-input",
			VerificationSubmit:  "button.email-view-wrapper__button",
			VerificationMarkers: []string{"verification code", "Enter code"},
		},
	}
}

func newTestFlow(repo SessionRepository, solver ChallengeSolver, codes CodeRetriever) *Flow {
	f := New(config.AuthConfig{
		SubmitWait:      time.Second,
		VerifyCheckWait: time.Second,
		CodeSubmitWait:  time.Second,
		SettleWait:      time.Second,
		GraceWait:       time.Second,
	}, testPlatformConfig(), repo, solver, codes, zap.NewNop())
	f.pauseScale = 0
	return f
}

func validCreds() Credentials {
	return Credentials{
		Username:          "creator01",
		Password:          "hunter2",
		VerificationEmail: "creator01@fakemailo.com",
	}
}

func usableRecord() *schemas.SessionRecord {
	return &schemas.SessionRecord{
		Username:  "creator01",
		Platform:  schemas.PlatformTikTok,
		Cookies:   []schemas.Cookie{{Name: "sessionid", Value: "abc", Domain: ".tiktok.com"}},
		UserAgent: "Mozilla/5.0",
		LastLogin: time.Now().Add(-time.Hour),
		IsValid:   true,
	}
}

// expectFreshLogin wires the whole credential path onto the page mock:
// clear, navigate, type both fields, submit, no verification screen,
// and a clean snapshot at the end.
func expectFreshLogin(page *mocks.MockSurface, sel config.SelectorsConfig) {
	page.On("ClearBrowserData", mock.Anything).Return(nil)
	page.On("Navigate", mock.Anything, mock.Anything).Return(nil)
	page.On("WaitVisible", mock.Anything, sel.UsernameInput, mock.Anything).Return(nil)
	page.On("Type", mock.Anything, sel.UsernameInput, "creator01").Return(nil)
	page.On("WaitVisible", mock.Anything, sel.PasswordInput, mock.Anything).Return(nil)
	page.On("Type", mock.Anything, sel.PasswordInput, "hunter2").Return(nil)
	page.On("PressKey", mock.Anything, "Enter").Return(nil)
	page.On("Exists", mock.Anything, sel.VerificationInput).Return(false, nil)
	page.On("Evaluate", mock.Anything, "document.body.textContent", mock.Anything).
		Run(func(args mock.Arguments) {
			*(args.Get(2).(*string)) = "For You"
		}).Return(nil)
	expectSnapshot(page)
}

func expectSnapshot(page *mocks.MockSurface) {
	page.On("Cookies", mock.Anything).
		Return([]schemas.Cookie{{Name: "sessionid", Value: "abc", Domain: ".tiktok.com"}}, nil)
	page.On("LocalStorage", mock.Anything).Return(map[string]string{"k": "v"}, nil)
	page.On("SessionStorage", mock.Anything).Return(map[string]string{}, nil)
	page.On("UserAgent", mock.Anything).Return("Mozilla/5.0", nil)
}

func TestLoginMissingInput(t *testing.T) {
	repo := new(mocks.MockSessionRepository)
	page := new(mocks.MockSurface)

	flow := newTestFlow(repo, &stubSolver{}, &stubRetriever{})
	result := flow.Login(context.Background(), page, Credentials{Username: "creator01"})

	assert.False(t, result.Success)
	assert.Equal(t, schemas.ReasonMissingInput, result.Reason)
	repo.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestLoginFromCache(t *testing.T) {
	repo := new(mocks.MockSessionRepository)
	repo.On("Load", mock.Anything, "creator01").Return(usableRecord(), nil)
	repo.On("MarkUsed", mock.Anything, "creator01").Return(nil)

	page := new(mocks.MockSurface)
	page.On("SetUserAgent", mock.Anything, "Mozilla/5.0").Return(nil)
	page.On("SetCookies", mock.Anything, mock.Anything).Return(nil)

	flow := newTestFlow(repo, &stubSolver{}, &stubRetriever{})
	result := flow.Login(context.Background(), page, validCreds())

	assert.True(t, result.Success)
	assert.True(t, result.FromCache)
	page.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
	repo.AssertCalled(t, "MarkUsed", mock.Anything, "creator01")
}

func TestLoginFreshWhenNoSession(t *testing.T) {
	repo := new(mocks.MockSessionRepository)
	repo.On("Load", mock.Anything, "creator01").Return(nil, store.ErrNotFound)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	page := new(mocks.MockSurface)
	expectFreshLogin(page, testPlatformConfig().Selectors)

	flow := newTestFlow(repo, &stubSolver{}, &stubRetriever{})
	result := flow.Login(context.Background(), page, validCreds())

	assert.True(t, result.Success)
	assert.False(t, result.FromCache)
	page.AssertCalled(t, "Navigate", mock.Anything, "https://www.tiktok.com/login/phone-or-email/email")
	repo.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(r *schemas.SessionRecord) bool {
		return r.Username == "creator01" && r.IsValid
	}))
}

func TestLoginInvalidatesBrokenSnapshot(t *testing.T) {
	// A record whose cookies cannot be replayed must not block the
	// credential flow.
	record := usableRecord()
	record.Cookies = []schemas.Cookie{{Name: "broken"}}

	repo := new(mocks.MockSessionRepository)
	repo.On("Load", mock.Anything, "creator01").Return(record, nil)
	repo.On("Invalidate", mock.Anything, "creator01").Return(nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	page := new(mocks.MockSurface)
	expectFreshLogin(page, testPlatformConfig().Selectors)

	flow := newTestFlow(repo, &stubSolver{}, &stubRetriever{})
	result := flow.Login(context.Background(), page, validCreds())

	assert.True(t, result.Success)
	assert.False(t, result.FromCache)
	repo.AssertCalled(t, "Invalidate", mock.Anything, "creator01")
}

func TestLoginCaptchaUnsolved(t *testing.T) {
	repo := new(mocks.MockSessionRepository)
	repo.On("Load", mock.Anything, "creator01").Return(nil, store.ErrNotFound)

	page := new(mocks.MockSurface)
	expectFreshLogin(page, testPlatformConfig().Selectors)

	// The challenge stays up through the solve and the grace window.
	solver := &stubSolver{present: []bool{true}, solved: false}
	flow := newTestFlow(repo, solver, &stubRetriever{})
	result := flow.Login(context.Background(), page, validCreds())

	assert.False(t, result.Success)
	assert.Equal(t, schemas.ReasonCaptchaUnsolved, result.Reason)
	assert.Equal(t, 1, solver.solveCalls)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestLoginCaptchaSolvedOutOfBand(t *testing.T) {
	repo := new(mocks.MockSessionRepository)
	repo.On("Load", mock.Anything, "creator01").Return(nil, store.ErrNotFound)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	page := new(mocks.MockSurface)
	expectFreshLogin(page, testPlatformConfig().Selectors)

	// Solver gives up but the challenge is gone after the grace wait.
	solver := &stubSolver{present: []bool{true, false}, solved: false}
	flow := newTestFlow(repo, solver, &stubRetriever{})
	result := flow.Login(context.Background(), page, validCreds())

	assert.True(t, result.Success)
}

func TestLoginVerificationGate(t *testing.T) {
	sel := testPlatformConfig().Selectors

	newVerifyingPage := func() *mocks.MockSurface {
		page := new(mocks.MockSurface)
		page.On("ClearBrowserData", mock.Anything).Return(nil)
		page.On("Navigate", mock.Anything, mock.Anything).Return(nil)
		page.On("WaitVisible", mock.Anything, sel.UsernameInput, mock.Anything).Return(nil)
		page.On("Type", mock.Anything, sel.UsernameInput, "creator01").Return(nil)
		page.On("WaitVisible", mock.Anything, sel.PasswordInput, mock.Anything).Return(nil)
		page.On("Type", mock.Anything, sel.PasswordInput, "hunter2").Return(nil)
		page.On("PressKey", mock.Anything, "Enter").Return(nil)
		page.On("Exists", mock.Anything, sel.VerificationInput).Return(true, nil)
		return page
	}

	t.Run("should enter a retrieved code and succeed", func(t *testing.T) {
		repo := new(mocks.MockSessionRepository)
		repo.On("Load", mock.Anything, "creator01").Return(nil, store.ErrNotFound)
		repo.On("Save", mock.Anything, mock.Anything).Return(nil)

		page := newVerifyingPage()
		page.On("WaitVisible", mock.Anything, sel.VerificationInput, mock.Anything).Return(nil)
		page.On("Type", mock.Anything, sel.VerificationInput, "123456").Return(nil)
		page.On("Exists", mock.Anything, sel.VerificationSubmit).Return(true, nil)
		page.On("Click", mock.Anything, sel.VerificationSubmit).Return(nil)
		expectSnapshot(page)

		codes := &stubRetriever{code: "123456"}
		flow := newTestFlow(repo, &stubSolver{}, codes)
		result := flow.Login(context.Background(), page, validCreds())

		require.True(t, result.Success)
		assert.Equal(t, "creator01@fakemailo.com", codes.email)
		page.AssertCalled(t, "Type", mock.Anything, sel.VerificationInput, "123456")
	})

	t.Run("should fail when no code arrives", func(t *testing.T) {
		repo := new(mocks.MockSessionRepository)
		repo.On("Load", mock.Anything, "creator01").Return(nil, store.ErrNotFound)

		page := newVerifyingPage()
		flow := newTestFlow(repo, &stubSolver{}, &stubRetriever{code: ""})
		result := flow.Login(context.Background(), page, validCreds())

		assert.False(t, result.Success)
		assert.Equal(t, schemas.ReasonVerificationFailed, result.Reason)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("should fail when code entry breaks", func(t *testing.T) {
		repo := new(mocks.MockSessionRepository)
		repo.On("Load", mock.Anything, "creator01").Return(nil, store.ErrNotFound)

		page := newVerifyingPage()
		page.On("WaitVisible", mock.Anything, sel.VerificationInput, mock.Anything).
			Return(errors.New("input never appeared"))

		flow := newTestFlow(repo, &stubSolver{}, &stubRetriever{code: "123456"})
		result := flow.Login(context.Background(), page, validCreds())

		assert.False(t, result.Success)
		assert.Equal(t, schemas.ReasonVerificationFailed, result.Reason)
	})
}

func TestLoginPersistFailureDoesNotDowngrade(t *testing.T) {
	repo := new(mocks.MockSessionRepository)
	repo.On("Load", mock.Anything, "creator01").Return(nil, store.ErrNotFound)
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("db unreachable"))

	page := new(mocks.MockSurface)
	expectFreshLogin(page, testPlatformConfig().Selectors)

	flow := newTestFlow(repo, &stubSolver{}, &stubRetriever{})
	result := flow.Login(context.Background(), page, validCreds())

	assert.True(t, result.Success)
}

func TestLogout(t *testing.T) {
	t.Run("should delete the record and clear the browser", func(t *testing.T) {
		repo := new(mocks.MockSessionRepository)
		repo.On("Delete", mock.Anything, "creator01").Return(nil)

		page := new(mocks.MockSurface)
		page.On("ClearBrowserData", mock.Anything).Return(nil)
		page.On("Navigate", mock.Anything, "https://www.tiktok.com/foryou").Return(nil)

		flow := newTestFlow(repo, &stubSolver{}, &stubRetriever{})
		require.NoError(t, flow.Logout(context.Background(), page, "creator01"))
		page.AssertCalled(t, "ClearBrowserData", mock.Anything)
	})

	t.Run("should treat a missing record as logged out", func(t *testing.T) {
		// Delete is idempotent at the repository, so an unknown
		// username reports nothing to do rather than an error.
		repo := new(mocks.MockSessionRepository)
		repo.On("Delete", mock.Anything, "ghost").Return(nil)

		page := new(mocks.MockSurface)
		page.On("ClearBrowserData", mock.Anything).Return(nil)
		page.On("Navigate", mock.Anything, mock.Anything).Return(nil)

		flow := newTestFlow(repo, &stubSolver{}, &stubRetriever{})
		assert.NoError(t, flow.Logout(context.Background(), page, "ghost"))
	})

	t.Run("should surface database failures", func(t *testing.T) {
		repo := new(mocks.MockSessionRepository)
		repo.On("Delete", mock.Anything, "creator01").Return(errors.New("db down"))

		page := new(mocks.MockSurface)
		page.On("ClearBrowserData", mock.Anything).Return(nil)
		page.On("Navigate", mock.Anything, mock.Anything).Return(nil)

		flow := newTestFlow(repo, &stubSolver{}, &stubRetriever{})
		assert.Error(t, flow.Logout(context.Background(), page, "creator01"))
	})
}
