// Package users loads the flat, file-provisioned credential table that
// backs both SMTP AUTH PLAIN and POP3 USER/PASS. This is the "user/
// credential table" spec.md names as an external collaborator; the CSV
// format is part of the core's documented CLI surface (spec.md §6), so
// it is parsed directly rather than routed through a pluggable backend.
package users

import (
	"bufio"
	"crypto/subtle"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Table is the in-memory, read-only-after-load user/password table.
type Table struct {
	passwords map[string]string // lower-cased username -> stored password
}

// Load reads a TAB-separated "username<TAB>password" file, one record per
// line. The username is lower-cased; the password is stored as-is.
// Blank lines, lines without a TAB and lines with an empty username are
// skipped silently, matching spec.md §6; everything after the first TAB
// is the password.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening user table %s: %w", path, err)
	}
	defer f.Close()

	t := &Table{passwords: make(map[string]string)}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(fields[0]))
		pass := fields[1]
		if name == "" {
			continue
		}
		t.passwords[name] = pass
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading user table %s: %w", path, err)
	}
	return t, nil
}

// Has reports whether a (lower-cased) username exists in the table.
func (t *Table) Has(user string) bool {
	_, ok := t.passwords[strings.ToLower(user)]
	return ok
}

// Verify checks a password against the stored credential for user.
// A stored value that looks like a bcrypt hash ($2a$/$2b$/$2y$ prefix)
// is compared with bcrypt; everything else is compared as a literal
// password using a constant-time comparison, matching spec.md's "stored
// as-is" CSV contract while still allowing operators to pre-hash entries.
func (t *Table) Verify(user, pass string) bool {
	stored, ok := t.passwords[strings.ToLower(user)]
	if !ok {
		return false
	}
	if looksBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(pass)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(pass)) == 1
}

func looksBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// Names returns all (lower-cased) usernames in the table, in no
// particular order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.passwords))
	for n := range t.passwords {
		names = append(names, n)
	}
	return names
}
