package escaper

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLDAPAuthenticatorRejectsMissingCredentials(t *testing.T) {
	a := NewLDAPAuthenticator("ldap-1", "127.0.0.1:0", "uid=%s,ou=people,dc=test", time.Second)

	notes := NewTaskNotes(nil, nil)
	err := a.AuthUser(context.Background(), notes, "s3cr3t")
	require.ErrorContains(t, err, "requires both username and password")

	notes.Username = "alice"
	err = a.AuthUser(context.Background(), notes, "")
	require.ErrorContains(t, err, "requires both username and password")
}

func TestLDAPAuthenticatorDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close() // nothing listening now, dial must fail

	a := NewLDAPAuthenticator("ldap-2", addr, "uid=%s,ou=people,dc=test", 200*time.Millisecond)
	notes := NewTaskNotes(nil, nil)
	notes.Username = "alice"

	err = a.AuthUser(context.Background(), notes, "s3cr3t")
	require.ErrorContains(t, err, "ldap dial")
}

func TestLDAPAuthenticatorImplementsUserAuthenticator(t *testing.T) {
	var u UserAuthenticator = NewLDAPAuthenticator("ldap-3", "127.0.0.1:389", "uid=%s,ou=people,dc=test", time.Second)
	require.NotNil(t, u)
}
