package pollev

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pollevbot/pollevbot/internal/clock"
	"github.com/pollevbot/pollevbot/model/poll"
	"github.com/pollevbot/pollevbot/service/session"
)

// Login modes supported by the platform.
const (
	// LoginModePollev authenticates directly against pollev.com.
	LoginModePollev = "pollev"

	// LoginModeInstitution authenticates through the institution's SAML SSO.
	LoginModeInstitution = "uw"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/70.0.3538.102 Safari/537.36"

var (
	sessionIDPattern    = regexp.MustCompile(`jsessionid=(.*)\.`)
	samlResponsePattern = regexp.MustCompile(`<input[^>]+type="hidden"[^>]+value="([^"]*)"`)
	authTokenPattern    = regexp.MustCompile(`pe_auth_token=(.*)`)
)

// Config represents the session configuration
type Config struct {
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"-" yaml:"-"`
	Host        string `json:"host" yaml:"host"`
	LoginMode   string `json:"loginMode" yaml:"loginMode"`
	Institution string `json:"institution,omitempty" yaml:"institution,omitempty"`

	// BaseURL and FirehoseURL default to the production origins; tests
	// point them at a local server.
	BaseURL     string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	FirehoseURL string `json:"firehoseURL,omitempty" yaml:"firehoseURL,omitempty"`

	// ProbeTimeout bounds the feed probe latency.
	ProbeTimeout time.Duration `json:"probeTimeout,omitempty" yaml:"probeTimeout,omitempty"`
}

// Service implements session.Service against the PollEverywhere endpoints.
// It is driven by the single watcher loop and is not safe for concurrent
// probes.
type Service struct {
	config Config
	client *http.Client
}

// New creates a platform session. The login mode must be one of
// LoginModePollev or LoginModeInstitution.
func New(config Config) (*Service, error) {
	switch config.LoginMode {
	case LoginModePollev, LoginModeInstitution:
	default:
		return nil, fmt.Errorf("%q is not a supported login mode, use %q or %q",
			config.LoginMode, LoginModePollev, LoginModeInstitution)
	}
	if config.LoginMode == LoginModePollev && strings.HasSuffix(strings.ToLower(strings.TrimSpace(config.Username)), "@uw.edu") {
		log.Printf("%v looks like an institutional email, use loginMode=%q to log in through SSO",
			config.Username, LoginModeInstitution)
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.FirehoseURL == "" {
		config.FirehoseURL = DefaultFirehoseURL
	}
	if config.Institution == "" {
		config.Institution = "uw"
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 300 * time.Millisecond
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Service{
		config: config,
		client: &http.Client{Jar: jar},
	}, nil
}

func timestamp() int64 {
	return clock.Now().UnixMilli()
}

// Login authenticates the session using the configured mode.
func (s *Service) Login(ctx context.Context) error {
	var (
		ok  bool
		err error
	)
	if s.config.LoginMode == LoginModeInstitution {
		ok, err = s.institutionLogin(ctx)
	} else {
		ok, err = s.pollevLogin(ctx)
	}
	if err != nil {
		return &session.AuthError{Reason: err.Error()}
	}
	if !ok {
		return &session.AuthError{Reason: "your username or password was incorrect"}
	}
	log.Printf("login successful")
	return nil
}

// pollevLogin posts the credentials directly. On success the platform
// responds with an empty body.
func (s *Service) pollevLogin(ctx context.Context) (bool, error) {
	log.Printf("logging in through pollev.com")
	token, err := s.csrfToken(ctx)
	if err != nil {
		return false, err
	}
	body, _, err := s.postForm(ctx, s.loginURL(), url.Values{
		"login":    {s.config.Username},
		"password": {s.config.Password},
	}, token)
	if err != nil {
		return false, err
	}
	return len(body) == 0, nil
}

// institutionLogin walks the SAML SSO handshake: fetch the IdP form, post
// the credentials, relay the SAMLResponse back and trade the resulting auth
// token for a session cookie.
func (s *Service) institutionLogin(ctx context.Context) (bool, error) {
	log.Printf("logging in through institutional SSO")
	page, _, err := s.get(ctx, s.institutionSAMLURL())
	if err != nil {
		return false, err
	}
	match := sessionIDPattern.FindStringSubmatch(string(page))
	if match == nil {
		return false, fmt.Errorf("identity provider form did not carry a session id")
	}
	loginURL := fmt.Sprintf("%s/idp/profile/SAML2/Redirect/SSO;jsessionid=%s", s.config.BaseURL, match[1])

	page, _, err = s.postForm(ctx, loginURL, url.Values{
		"j_username":       {s.config.Username},
		"j_password":       {s.config.Password},
		"_eventId_proceed": {"Sign in"},
	}, "")
	if err != nil {
		return false, err
	}
	// The IdP omits the SAMLResponse when authentication fails.
	match = samlResponsePattern.FindStringSubmatch(string(page))
	if match == nil {
		return false, nil
	}

	_, finalURL, err := s.postForm(ctx, s.institutionCallbackURL(), url.Values{
		"SAMLResponse": {match[1]},
	}, "")
	if err != nil {
		return false, err
	}
	tokenMatch := authTokenPattern.FindStringSubmatch(finalURL)
	if tokenMatch == nil {
		return false, fmt.Errorf("callback did not yield an auth token")
	}
	csrf, err := s.csrfToken(ctx)
	if err != nil {
		return false, err
	}
	if _, _, err = s.postForm(ctx, s.authTokenURL(), url.Values{"token": {tokenMatch[1]}}, csrf); err != nil {
		return false, err
	}
	return true, nil
}

// FeedToken retrieves a feed subscription token for the configured host.
// The feed checks for two visitor cookies the web client generates.
func (s *Service) FeedToken(ctx context.Context) (string, error) {
	base, err := url.Parse(s.config.FirehoseURL)
	if err != nil {
		return "", err
	}
	s.client.Jar.SetCookies(base, []*http.Cookie{
		{Name: "pollev_visitor", Value: uuid.New().String()},
		{Name: "pollev_visit", Value: uuid.New().String()},
	})

	body, _, err := s.get(ctx, s.firehoseAuthURL(timestamp()))
	if err != nil {
		return "", err
	}
	if strings.Contains(strings.ToLower(string(body)), "presenter not found") {
		return "", &session.AuthError{Reason: fmt.Sprintf("%q is not a valid poll host", s.config.Host)}
	}
	var payload struct {
		FirehoseToken string `json:"firehose_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode feed token: %w", err)
	}
	return payload.FirehoseToken, nil
}

// Probe issues a bounded-latency check against the feed. No response,
// a transport timeout or an unexpected payload all mean "no poll open".
func (s *Service) Probe(ctx context.Context, token string) (*session.Detection, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ProbeTimeout)
	defer cancel()

	body, _, err := s.get(ctx, s.firehoseActivityURL(token, timestamp()))
	if err != nil {
		// The feed simply does not respond while no poll is open.
		return nil, nil
	}
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Message == "" {
		return nil, nil
	}
	var inner struct {
		UID   string `json:"uid"`
		Type  string `json:"type"`
		Error *struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(envelope.Message), &inner); err != nil {
		return nil, nil
	}
	if inner.Error != nil {
		if inner.Error.Type == "ExpiredSubscription" {
			return nil, &session.SubscriptionExpiredError{Detail: inner.Error.Type}
		}
		return nil, nil
	}
	if inner.UID == "" {
		return nil, nil
	}
	return &session.Detection{ID: inner.UID, Kind: poll.Kind(inner.Type)}, nil
}

// PollDetail fetches the full record for a detected poll.
func (s *Service) PollDetail(ctx context.Context, detection *session.Detection) (*poll.Record, error) {
	body, _, err := s.get(ctx, s.pollDetailURL(string(detection.Kind), detection.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch poll %v: %w", detection.ID, err)
	}
	var wire struct {
		ID      json.Number `json:"id"`
		Type    string      `json:"type"`
		Title   string      `json:"title"`
		Options []struct {
			ID        json.Number `json:"id"`
			Humanized string      `json:"humanized_value"`
		} `json:"options"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode poll %v: %w", detection.ID, err)
	}
	record := &poll.Record{
		ID:    detection.ID,
		Kind:  detection.Kind,
		Title: wire.Title,
	}
	for _, option := range wire.Options {
		record.Options = append(record.Options, poll.Option{
			ID:    option.ID.String(),
			Label: option.Humanized,
		})
	}
	return record, nil
}

// SubmitAnswer posts the final answer for a poll.
func (s *Service) SubmitAnswer(ctx context.Context, record *poll.Record, candidate *poll.Candidate) error {
	token, err := s.csrfToken(ctx)
	if err != nil {
		return err
	}
	form := url.Values{
		"isPending": {"true"},
		"source":    {"pollev_page"},
	}
	if record.Kind == poll.KindFreeText {
		form.Set("value", candidate.Text)
	} else {
		form.Set("option_id", candidate.OptionID)
	}
	_, _, err = s.postForm(ctx, s.respondURL(string(record.Kind), record.ID), form, token)
	if err != nil {
		return fmt.Errorf("failed to submit answer for poll %v: %w", record.ID, err)
	}
	return nil
}

func (s *Service) csrfToken(ctx context.Context) (string, error) {
	body, _, err := s.get(ctx, s.csrfURL(timestamp()))
	if err != nil {
		return "", fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode csrf token: %w", err)
	}
	return payload.Token, nil
}

func (s *Service) get(ctx context.Context, target string) ([]byte, string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	return s.do(request)
}

func (s *Service) postForm(ctx context.Context, target string, form url.Values, csrf string) ([]byte, string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", err
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if csrf != "" {
		request.Header.Set("x-csrf-token", csrf)
	}
	return s.do(request)
}

// do executes the request and returns the body together with the final URL
// after redirects (the SSO handshake encodes its token there).
func (s *Service) do(request *http.Request) ([]byte, string, error) {
	request.Header.Set("User-Agent", userAgent)
	response, err := s.client.Do(request)
	if err != nil {
		return nil, "", err
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, "", err
	}
	if response.StatusCode >= http.StatusBadRequest {
		return body, response.Request.URL.String(), fmt.Errorf("%v returned status %v", request.URL.Path, response.StatusCode)
	}
	return body, response.Request.URL.String(), nil
}

var _ session.Service = (*Service)(nil)
