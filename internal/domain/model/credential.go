package model

import "strings"

// Credential holds one portal account login. Usernames are unique within
// the vault; entries are replaced wholesale, never mutated in place.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Blank reports whether either half of the credential is missing after
// trimming. Blank credentials are skipped by the orchestrator without
// counting as errors.
func (c Credential) Blank() bool {
	return strings.TrimSpace(c.Username) == "" || strings.TrimSpace(c.Password) == ""
}
