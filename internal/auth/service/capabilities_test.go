package service

import (
	"testing"

	installs "fieldops_backend/internal/installs/transport"
)

func TestCapabilities(t *testing.T) {
	caps := NewCapabilities()

	cases := []struct {
		roles                                 []string
		dispatch, confirm, cancelable, onSite bool
	}{
		{[]string{RoleAdmin}, true, true, true, true},
		{[]string{RoleDispatcher}, true, false, true, false},
		{[]string{RoleBackoffice}, false, true, false, false},
		{[]string{RoleInstaller}, false, false, false, false},
		{nil, false, false, false, false},
		{[]string{RoleInstaller, RoleDispatcher}, true, false, true, false},
	}

	for _, tc := range cases {
		sess := installs.Session{Roles: tc.roles}
		if got := caps.CanDispatch(sess); got != tc.dispatch {
			t.Fatalf("CanDispatch(%v) = %v, want %v", tc.roles, got, tc.dispatch)
		}
		if got := caps.CanConfirm(sess); got != tc.confirm {
			t.Fatalf("CanConfirm(%v) = %v, want %v", tc.roles, got, tc.confirm)
		}
		if got := caps.CanCancel(sess); got != tc.cancelable {
			t.Fatalf("CanCancel(%v) = %v, want %v", tc.roles, got, tc.cancelable)
		}
		if got := caps.CanActOnSite(sess); got != tc.onSite {
			t.Fatalf("CanActOnSite(%v) = %v, want %v", tc.roles, got, tc.onSite)
		}
	}
}
