package authstate

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// SimpleConfig is a plain value implementation of Config
type SimpleConfig struct {
	RefreshInterval     time.Duration `json:"refresh_interval,omitempty"`
	InitTimeout         time.Duration `json:"init_timeout,omitempty"`
	MaxCheckFailures    int           `json:"max_check_failures,omitempty"`
	ReservedIdentities  []string      `json:"reserved_identities,omitempty"`
	PasswordRedirectURL string        `json:"password_redirect_url,omitempty"`
	RoleTopic           string        `json:"role_topic,omitempty"`
}

var _ Config = SimpleConfig{}

func (c SimpleConfig) GetRefreshInterval() time.Duration {
	return c.RefreshInterval
}

func (c SimpleConfig) GetInitTimeout() time.Duration {
	return c.InitTimeout
}

func (c SimpleConfig) GetMaxCheckFailures() int {
	return c.MaxCheckFailures
}

func (c SimpleConfig) GetReservedIdentities() []string {
	return c.ReservedIdentities
}

func (c SimpleConfig) GetPasswordRedirectURL() string {
	return c.PasswordRedirectURL
}

func (c SimpleConfig) GetRoleTopic() string {
	return c.RoleTopic
}

// Validate checks the configuration values
func (c SimpleConfig) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.MaxCheckFailures, validation.Min(0)),
		validation.Field(&c.PasswordRedirectURL, is.URL),
	); err != nil {
		return err
	}

	for _, email := range c.ReservedIdentities {
		if err := validation.Validate(email, validation.Required, is.Email); err != nil {
			return fmt.Errorf("reserved identity %q: %w", email, err)
		}
	}
	return nil
}
