package goAccounts

import "strings"

// AllowedEmailDomain checks the user's primary email against the
// Accounts_AllowedDomainsList setting. Visitors, users without email and an
// empty list always pass. Matching is case-sensitive on the "@domain" suffix.
func AllowedEmailDomain(settings Settings, user *User) error {
	if user == nil || user.Type == UserTypeVisitor {
		return nil
	}

	domains := parseCSV(settings.AllowedDomainsList)
	if len(domains) == 0 {
		return nil
	}

	email := user.PrimaryEmail()
	if email == "" {
		return nil
	}

	for _, d := range domains {
		if strings.HasSuffix(email, "@"+d) {
			return nil
		}
	}
	return ErrInvalidDomain
}
