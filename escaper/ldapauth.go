package escaper

import (
	"context"
	"fmt"
	"net"
	"time"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/sabouaram/g3edge/internal/stat"
)

// LDAPAuthenticator checks TaskNotes.Username/password pairs by binding
// to an LDAP directory, grounded on the teacher's ldap.HelperLDAP.
// AuthUser (`_examples/nabbar-golib/ldap/ldap.go`): connect, then a
// plain simple-bind with the caller-supplied credentials — a bind that
// succeeds is the directory's own proof the password is correct, so
// there's nothing further to check on the reply.
type LDAPAuthenticator struct {
	base
	ServerAddr     string // host:port of the LDAP server
	BindDNTemplate string // e.g. "uid=%s,ou=people,dc=example,dc=com"
	Timeout        time.Duration
}

func NewLDAPAuthenticator(name stat.NodeName, serverAddr, bindDNTemplate string, timeout time.Duration) *LDAPAuthenticator {
	return &LDAPAuthenticator{base: newBase(name), ServerAddr: serverAddr, BindDNTemplate: bindDNTemplate, Timeout: timeout}
}

func (a *LDAPAuthenticator) AuthUser(ctx context.Context, notes *TaskNotes, password string) error {
	if notes.Username == "" || password == "" {
		return fmt.Errorf("escaper: ldap auth requires both username and password")
	}

	conn, err := goldap.DialURL(fmt.Sprintf("ldap://%s", a.ServerAddr),
		goldap.DialWithDialer(&net.Dialer{Timeout: a.Timeout}))
	if err != nil {
		return fmt.Errorf("escaper: ldap dial %s: %w", a.ServerAddr, err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		dn := fmt.Sprintf(a.BindDNTemplate, notes.Username)
		done <- conn.Bind(dn, password)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("escaper: ldap bind rejected for %q: %w", notes.Username, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
