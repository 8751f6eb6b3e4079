// Package recipient loads and validates recipient records from a
// delimited source file.
package recipient

import "strings"

// Recipient is a single person to be contacted. Identity is the
// normalized email address; records are immutable after load.
type Recipient struct {
	Email     string
	FirstName string
	Company   string
}

// Key returns the normalized identity of the recipient.
func (r Recipient) Key() string {
	return Normalize(r.Email)
}

// Fields returns the template substitution values for this recipient.
func (r Recipient) Fields() map[string]string {
	return map[string]string{
		"email":      r.Email,
		"first_name": r.FirstName,
		"company":    r.Company,
	}
}

// Normalize lowercases and trims an address so the same mailbox always
// maps to the same sent-log key.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
