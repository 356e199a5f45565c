package pollev

import "fmt"

// DefaultBaseURL is the web application origin.
const DefaultBaseURL = "https://pollev.com"

// DefaultFirehoseURL is the near-real-time feed origin.
const DefaultFirehoseURL = "https://firehose-production.polleverywhere.com"

func (s *Service) csrfURL(timestamp int64) string {
	return fmt.Sprintf("%s/proxy/api/csrf_token?_=%d", s.config.BaseURL, timestamp)
}

func (s *Service) loginURL() string {
	return s.config.BaseURL + "/login"
}

func (s *Service) institutionSAMLURL() string {
	return fmt.Sprintf("%s/proxy/university/saml?id=%s", s.config.BaseURL, s.config.Institution)
}

func (s *Service) institutionCallbackURL() string {
	return s.config.BaseURL + "/proxy/university/saml/callback"
}

func (s *Service) authTokenURL() string {
	return s.config.BaseURL + "/proxy/auth_token"
}

func (s *Service) firehoseAuthURL(timestamp int64) string {
	return fmt.Sprintf("%s/users/%s/auth?_=%d", s.config.FirehoseURL, s.config.Host, timestamp)
}

func (s *Service) firehoseActivityURL(token string, timestamp int64) string {
	if token == "" {
		return fmt.Sprintf("%s/users/%s/activity?_=%d", s.config.FirehoseURL, s.config.Host, timestamp)
	}
	return fmt.Sprintf("%s/users/%s/activity?firehose_token=%s&_=%d", s.config.FirehoseURL, s.config.Host, token, timestamp)
}

func (s *Service) pollDetailURL(kind string, uid string) string {
	if kind == "free_text_poll" {
		return fmt.Sprintf("%s/proxy/free_text_polls/%s", s.config.BaseURL, uid)
	}
	return fmt.Sprintf("%s/proxy/multiple_choice_polls/%s", s.config.BaseURL, uid)
}

func (s *Service) respondURL(kind string, uid string) string {
	if kind == "free_text_poll" {
		return fmt.Sprintf("%s/proxy/free_text_polls/%s/results", s.config.BaseURL, uid)
	}
	return fmt.Sprintf("%s/proxy/multiple_choice_polls/%s/results", s.config.BaseURL, uid)
}
