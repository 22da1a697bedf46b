package config

import (
	"encoding/json"
	"os"

	"github.com/sgalindo-dev/veriauth/internal/flagx"
	"github.com/sgalindo-dev/veriauth/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Duration fields accept both "24h"-style strings and integer
// nanoseconds. After unmarshalling, set fields are copied into the runtime
// Config.
type JsonConfig struct {
	EndpointAddrHTTP          string         `json:"endpoint_addr_http"`
	DatabaseDSN               string         `json:"database_dsn"`
	SecretKey                 string         `json:"secret_key"`
	VerificationTokenValidity timex.Duration `json:"verification_token_validity"`
	SessionTokenValidity      timex.Duration `json:"session_token_validity"`
	VerificationLinkBaseURL   string         `json:"verification_link_base_url"`
	SMTPHost                  string         `json:"smtp_host"`
	SMTPPort                  int            `json:"smtp_port"`
	SMTPUser                  string         `json:"smtp_user"`
	SMTPPassword              string         `json:"smtp_password"`
	EmailFrom                 string         `json:"email_from"`
	SMTPDisabled              bool           `json:"smtp_disabled"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flags into the provided Config. When neither flag is set, nothing
// is loaded. An unreadable or invalid file panics: a broken explicit config
// must not silently fall back to defaults.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.VerificationTokenValidity.Duration != 0 {
		config.VerificationTokenValidity = c.VerificationTokenValidity.Duration
	}
	if c.SessionTokenValidity.Duration != 0 {
		config.SessionTokenValidity = c.SessionTokenValidity.Duration
	}
	if c.VerificationLinkBaseURL != "" {
		config.VerificationLinkBaseURL = c.VerificationLinkBaseURL
	}
	if c.SMTPHost != "" {
		config.SMTPHost = c.SMTPHost
	}
	if c.SMTPPort != 0 {
		config.SMTPPort = c.SMTPPort
	}
	if c.SMTPUser != "" {
		config.SMTPUser = c.SMTPUser
	}
	if c.SMTPPassword != "" {
		config.SMTPPassword = c.SMTPPassword
	}
	if c.EmailFrom != "" {
		config.EmailFrom = c.EmailFrom
	}
	if c.SMTPDisabled {
		config.SMTPDisabled = true
	}
}
