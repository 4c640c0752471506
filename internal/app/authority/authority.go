// Package authority provides the capability check for the single
// privileged account that curates the catalog and withdraws surplus. The
// check is injected into services rather than baked into them, so tests
// and alternative deployments can swap the policy.
package authority

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is returned when a caller lacks the authority capability.
var ErrUnauthorized = errors.New("caller is not the authority")

// Authority gates privileged operations.
type Authority interface {
	IsAuthority(account string) bool
	Require(account string) error
}

// Static is an Authority fixed to a single account.
type Static struct {
	account string
}

var _ Authority = (*Static)(nil)

// NewStatic builds an Authority for the given account.
func NewStatic(account string) (*Static, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, fmt.Errorf("authority account is required")
	}
	return &Static{account: account}, nil
}

// Account returns the privileged account identity.
func (s *Static) Account() string { return s.account }

// IsAuthority reports whether the account holds the capability.
func (s *Static) IsAuthority(account string) bool {
	return account == s.account
}

// Require returns ErrUnauthorized unless the account holds the capability.
func (s *Static) Require(account string) error {
	if !s.IsAuthority(account) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, account)
	}
	return nil
}
