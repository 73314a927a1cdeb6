package authstate_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-authstate"
	"github.com/stretchr/testify/assert"
)

func TestSimpleConfig_Validate(t *testing.T) {
	cfg := authstate.SimpleConfig{
		RefreshInterval:     time.Minute,
		InitTimeout:         time.Second,
		MaxCheckFailures:    3,
		ReservedIdentities:  []string{"root@example.com"},
		PasswordRedirectURL: "https://app.example.com/recover",
	}
	assert.NoError(t, cfg.Validate())

	cfg.ReservedIdentities = []string{"not-an-email"}
	assert.Error(t, cfg.Validate())

	cfg.ReservedIdentities = nil
	cfg.PasswordRedirectURL = "::not a url::"
	assert.Error(t, cfg.Validate())
}

func TestSimpleConfig_Getters(t *testing.T) {
	cfg := authstate.SimpleConfig{
		RefreshInterval:     time.Minute,
		InitTimeout:         2 * time.Second,
		MaxCheckFailures:    5,
		ReservedIdentities:  []string{"root@example.com"},
		PasswordRedirectURL: "https://app.example.com/recover",
		RoleTopic:           "tenant_roles",
	}

	assert.Equal(t, time.Minute, cfg.GetRefreshInterval())
	assert.Equal(t, 2*time.Second, cfg.GetInitTimeout())
	assert.Equal(t, 5, cfg.GetMaxCheckFailures())
	assert.Equal(t, []string{"root@example.com"}, cfg.GetReservedIdentities())
	assert.Equal(t, "https://app.example.com/recover", cfg.GetPasswordRedirectURL())
	assert.Equal(t, "tenant_roles", cfg.GetRoleTopic())
}
