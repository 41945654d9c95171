// The application's root configuration. Selector strings and behavioral
// thresholds live here rather than in code: the target platform's DOM drifts,
// and a selector change must not require a rebuild.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/Jasmitsingh01/tiktok/internal/browser/humanoid"
)

var (
	instance *Config
	mu       sync.RWMutex
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger"`
	Postgres     PostgresConfig     `mapstructure:"postgres"`
	Browser      BrowserConfig      `mapstructure:"browser"`
	Platform     PlatformConfig     `mapstructure:"platform"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Captcha      CaptchaConfig      `mapstructure:"captcha"`
	Verification VerificationConfig `mapstructure:"verification"`
	Warmup       WarmupConfig       `mapstructure:"warmup"`
	Services     ServicesConfig     `mapstructure:"services"`
}

// ColorConfig defines the color settings for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug"`
	Info  string `mapstructure:"info"`
	Warn  string `mapstructure:"warn"`
	Error string `mapstructure:"error"`
	Fatal string `mapstructure:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level"`
	Format      string      `mapstructure:"format"`
	AddSource   bool        `mapstructure:"add_source"`
	ServiceName string      `mapstructure:"service_name"`
	LogFile     string      `mapstructure:"log_file"`
	MaxSize     int         `mapstructure:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups"`
	MaxAge      int         `mapstructure:"max_age"`
	Compress    bool        `mapstructure:"compress"`
	Colors      ColorConfig `mapstructure:"colors"`
}

// PostgresConfig holds settings for the session database connection.
type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// ProxyConfig holds the optional upstream proxy settings.
type ProxyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// BrowserConfig holds settings for the headless browser.
type BrowserConfig struct {
	Headless        bool            `mapstructure:"headless"`
	IgnoreTLSErrors bool            `mapstructure:"ignore_tls_errors"`
	Proxy           ProxyConfig     `mapstructure:"proxy"`
	Humanoid        humanoid.Config `mapstructure:"humanoid"`
}

// SelectorsConfig maps the abstract targets the core interacts with onto
// concrete CSS selectors for the current state of the platform's DOM.
type SelectorsConfig struct {
	UsernameInput        string   `mapstructure:"username_input"`
	PasswordInput        string   `mapstructure:"password_input"`
	CaptchaContainer     string   `mapstructure:"captcha_container"`
	CaptchaAudioButton   string   `mapstructure:"captcha_audio_button"`
	CaptchaRefreshButton string   `mapstructure:"captcha_refresh_button"`
	CaptchaAnswerInput   string   `mapstructure:"captcha_answer_input"`
	CaptchaVerifyButton  string   `mapstructure:"captcha_verify_button"`
	VerificationInput    string   `mapstructure:"verification_input"`
	VerificationSubmit   string   `mapstructure:"verification_submit"`
	VerificationMarkers  []string `mapstructure:"verification_markers"`
	AuthorName           string   `mapstructure:"author_name"`
	LikeButton           string   `mapstructure:"like_button"`
	FollowButton         string   `mapstructure:"follow_button"`
	CommentOpenButton    string   `mapstructure:"comment_open_button"`
	CommentBox           string   `mapstructure:"comment_box"`
	CommentPostButton    string   `mapstructure:"comment_post_button"`
	CommentExitButton    string   `mapstructure:"comment_exit_button"`
	CommentItemText      string   `mapstructure:"comment_item_text"`
}

// PlatformConfig holds target URLs and the selector map.
type PlatformConfig struct {
	LoginURL string `mapstructure:"login_url"`
	FeedURL  string `mapstructure:"feed_url"`
	// StudioAnalyticsURL is a format string taking a post ID.
	StudioAnalyticsURL string `mapstructure:"studio_analytics_url"`
	// AnalyticsSettle is how long the studio dashboard gets to finish
	// rendering its metric cards before the screenshot is taken.
	AnalyticsSettle time.Duration `mapstructure:"analytics_settle"`
	// AlreadyFollowingTexts are the lowercase button-text substrings that
	// mean a follow would be redundant. Environment-specific policy, not
	// hardcoded.
	AlreadyFollowingTexts []string        `mapstructure:"already_following_texts"`
	Selectors             SelectorsConfig `mapstructure:"selectors"`
}

// AuthConfig holds the login state machine wait windows.
type AuthConfig struct {
	// SubmitWait is how long the page gets to react after credentials
	// are submitted, before the captcha check.
	SubmitWait time.Duration `mapstructure:"submit_wait"`
	// VerifyCheckWait runs between the captcha gate and the check for
	// the email-verification screen.
	VerifyCheckWait time.Duration `mapstructure:"verify_check_wait"`
	// CodeSubmitWait follows the verification code submission.
	CodeSubmitWait time.Duration `mapstructure:"code_submit_wait"`
	// SettleWait separates the verification gate from the second
	// captcha check and the final snapshot.
	SettleWait time.Duration `mapstructure:"settle_wait"`
	// GraceWait is the manual-intervention window after a gate fails
	// before the attempt is declared terminal.
	GraceWait time.Duration `mapstructure:"grace_wait"`
}

// CaptchaConfig holds the audio challenge solver settings.
type CaptchaConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	SwitchWait      time.Duration `mapstructure:"switch_wait"`
	SettleWait      time.Duration `mapstructure:"settle_wait"`
	AudioDir        string        `mapstructure:"audio_dir"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

// VerificationConfig holds the mail-portal code retriever settings.
type VerificationConfig struct {
	PortalURL      string        `mapstructure:"portal_url"`
	EmailInput     string        `mapstructure:"email_input"`
	ServiceSelect  string        `mapstructure:"service_select"`
	ServiceOption  string        `mapstructure:"service_option"`
	GetCodeButton  string        `mapstructure:"get_code_button"`
	SubjectElement string        `mapstructure:"subject_element"`
	ArrivalWait    time.Duration `mapstructure:"arrival_wait"`
}

// WarmupConfig holds the behavioral scheduler settings.
type WarmupConfig struct {
	Duration   time.Duration `mapstructure:"duration"`
	WatchMin   time.Duration `mapstructure:"watch_min"`
	WatchMax   time.Duration `mapstructure:"watch_max"`
	LikeP      float64       `mapstructure:"like_probability"`
	FollowP    float64       `mapstructure:"follow_probability"`
	CommentP   float64       `mapstructure:"comment_probability"`
	SeenLimit  int           `mapstructure:"seen_limit"`
	SettleWait time.Duration `mapstructure:"settle_wait"`
}

// ServiceConfig holds settings for a single external HTTP service.
type ServiceConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ServicesConfig groups the external verification/analysis services.
type ServicesConfig struct {
	Transcription ServiceConfig `mapstructure:"transcription"`
	Vision        ServiceConfig `mapstructure:"vision"`
	Humanizer     ServiceConfig `mapstructure:"humanizer"`
}

// SetDefaults registers defaults so the app can run with a minimal config.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "tiktok")
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.humanoid.enabled", true)
	v.SetDefault("browser.humanoid.fitts_a", 120.0)
	v.SetDefault("browser.humanoid.fitts_b", 180.0)
	v.SetDefault("browser.humanoid.perlin_amplitude", 6.0)
	v.SetDefault("browser.humanoid.tremor_std_dev", 0.8)
	v.SetDefault("browser.humanoid.step_interval", 12*time.Millisecond)
	v.SetDefault("browser.humanoid.click_hold_min", 45*time.Millisecond)
	v.SetDefault("browser.humanoid.click_hold_max", 130*time.Millisecond)
	v.SetDefault("browser.humanoid.key_delay_mean", 140*time.Millisecond)
	v.SetDefault("browser.humanoid.key_delay_std_dev", 60*time.Millisecond)
	v.SetDefault("browser.humanoid.mid_word_pause_p", 0.06)

	v.SetDefault("platform.login_url", "https://www.tiktok.com/login/phone-or-email/email")
	v.SetDefault("platform.feed_url", "https://www.tiktok.com/foryou")
	v.SetDefault("platform.studio_analytics_url", "https://www.tiktok.com/tiktokstudio/analytics/%s")
	v.SetDefault("platform.analytics_settle", 30*time.Second)
	v.SetDefault("platform.already_following_texts", []string{"following", "friends", "unfollow"})

	v.SetDefault("platform.selectors.username_input", `input[name="username"]`)
	v.SetDefault("platform.selectors.password_input", `input[type="password"]`)
	v.SetDefault("platform.selectors.captcha_container", "#captcha-verify-container-main-page")
	v.SetDefault("platform.selectors.captcha_audio_button", "#captcha_switch_button")
	v.SetDefault("platform.selectors.captcha_refresh_button", "#captcha_refresh_button")
	v.SetDefault("platform.selectors.captcha_answer_input", `input[placeholder="Enter what you hear"]`)
	v.SetDefault("platform.selectors.captcha_verify_button", "button.TUXButton--primary")
	v.SetDefault("platform.selectors.verification_input", "input.code-input")
	v.SetDefault("platform.selectors.verification_submit", "button.twv-component-button.email-view-wrapper__button")
	v.SetDefault("platform.selectors.verification_markers", []string{"verification code", "Enter code"})
	v.SetDefault("platform.selectors.author_name", `[data-e2e="video-author-uniqueid"]`)
	v.SetDefault("platform.selectors.like_button", `button[aria-label^="Like video"]`)
	v.SetDefault("platform.selectors.follow_button", `button[data-e2e="feed-follow"]`)
	v.SetDefault("platform.selectors.comment_open_button", `button[aria-label^="Read or add comments"]`)
	v.SetDefault("platform.selectors.comment_box", `div[contenteditable="true"][role="textbox"]`)
	v.SetDefault("platform.selectors.comment_post_button", `div[data-e2e="comment-post"][aria-disabled="false"]`)
	v.SetDefault("platform.selectors.comment_exit_button", `button[aria-label="exit"]`)
	v.SetDefault("platform.selectors.comment_item_text", `[data-e2e="comment-level-1"]`)

	v.SetDefault("auth.submit_wait", 20*time.Second)
	v.SetDefault("auth.verify_check_wait", 15*time.Second)
	v.SetDefault("auth.code_submit_wait", 10*time.Second)
	v.SetDefault("auth.settle_wait", 5*time.Second)
	v.SetDefault("auth.grace_wait", 30*time.Second)

	v.SetDefault("captcha.max_attempts", 3)
	v.SetDefault("captcha.switch_wait", 3*time.Second)
	v.SetDefault("captcha.settle_wait", 12*time.Second)
	v.SetDefault("captcha.audio_dir", "tmp/audios")
	v.SetDefault("captcha.download_timeout", 15*time.Second)

	v.SetDefault("verification.portal_url", "https://fakemailo.com/partner-authorized-emails")
	v.SetDefault("verification.email_input", "#email")
	v.SetDefault("verification.service_select", "#service")
	v.SetDefault("verification.service_option", "TikTok")
	v.SetDefault("verification.get_code_button", "#btn-get-code")
	v.SetDefault("verification.subject_element", "#mail-subject")
	v.SetDefault("verification.arrival_wait", 15*time.Second)

	v.SetDefault("warmup.duration", 10*time.Minute)
	v.SetDefault("warmup.watch_min", 5*time.Second)
	v.SetDefault("warmup.watch_max", 10*time.Second)
	v.SetDefault("warmup.like_probability", 0.7)
	v.SetDefault("warmup.follow_probability", 0.2)
	v.SetDefault("warmup.comment_probability", 0.1)
	v.SetDefault("warmup.seen_limit", 100)
	v.SetDefault("warmup.settle_wait", 5*time.Second)

	v.SetDefault("services.transcription.endpoint", "https://api.groq.com/openai/v1/audio/transcriptions")
	v.SetDefault("services.transcription.model", "whisper-large-v3")
	v.SetDefault("services.transcription.timeout", 30*time.Second)
	v.SetDefault("services.vision.endpoint", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("services.vision.model", "google/gemini-2.5-flash")
	v.SetDefault("services.vision.timeout", 30*time.Second)
	v.SetDefault("services.humanizer.endpoint", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("services.humanizer.model", "google/gemini-2.5-flash")
	v.SetDefault("services.humanizer.timeout", 30*time.Second)
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior deep inside a flow.
func (c *Config) Validate() error {
	if c.Captcha.MaxAttempts <= 0 {
		return fmt.Errorf("captcha.max_attempts must be positive, got %d", c.Captcha.MaxAttempts)
	}
	if c.Warmup.SeenLimit <= 0 {
		return fmt.Errorf("warmup.seen_limit must be positive, got %d", c.Warmup.SeenLimit)
	}
	if c.Warmup.WatchMin > c.Warmup.WatchMax {
		return fmt.Errorf("warmup.watch_min (%s) exceeds warmup.watch_max (%s)", c.Warmup.WatchMin, c.Warmup.WatchMax)
	}
	for name, p := range map[string]float64{
		"like_probability":    c.Warmup.LikeP,
		"follow_probability":  c.Warmup.FollowP,
		"comment_probability": c.Warmup.CommentP,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("warmup.%s must be within [0,1], got %v", name, p)
		}
	}
	return nil
}

// Load unmarshals the configuration from Viper and stores it globally.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	Set(&cfg)
	return &cfg, nil
}

// Set stores the configuration instance.
func Set(cfg *Config) {
	mu.Lock()
	instance = cfg
	mu.Unlock()
}

// Get returns the loaded configuration instance.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		panic("configuration not initialized; call config.Load() in the root command")
	}
	return instance
}
