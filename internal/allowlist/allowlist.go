// Package allowlist gates the admin surface. Membership is by email,
// case-insensitive, injected from configuration so deployments control who
// can see other applicants' data.
package allowlist

import "strings"

type List struct {
	emails map[string]struct{}
}

// New builds the allow-list from configured emails. Blank entries are
// dropped.
func New(emails []string) *List {
	l := &List{emails: make(map[string]struct{}, len(emails))}
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		l.emails[email] = struct{}{}
	}
	return l
}

// Allowed reports whether the email may use the admin surface. An empty
// list admits no one.
func (l *List) Allowed(email string) bool {
	if l == nil || len(l.emails) == 0 {
		return false
	}
	_, ok := l.emails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Empty reports whether no admins are configured.
func (l *List) Empty() bool {
	return l == nil || len(l.emails) == 0
}
