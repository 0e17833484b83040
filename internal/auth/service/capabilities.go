package service

import installs "fieldops_backend/internal/installs/transport"

// Role names recognized by the capability checks.
const (
	RoleAdmin      = "admin"
	RoleDispatcher = "dispatcher"
	RoleBackoffice = "backoffice"
	RoleInstaller  = "installer"
)

// Capabilities maps session roles to installation lifecycle permissions.
// It is the single place role semantics live; the installs module only
// sees the capability interface.
type Capabilities struct{}

// NewCapabilities creates the role-based capability checker.
func NewCapabilities() Capabilities {
	return Capabilities{}
}

// CanDispatch reports whether the session may assign installers.
func (Capabilities) CanDispatch(sess installs.Session) bool {
	return hasAny(sess.Roles, RoleAdmin, RoleDispatcher)
}

// CanConfirm reports whether the session may confirm or reject finished work.
func (Capabilities) CanConfirm(sess installs.Session) bool {
	return hasAny(sess.Roles, RoleAdmin, RoleBackoffice)
}

// CanCancel reports whether the session may cancel tasks.
func (Capabilities) CanCancel(sess installs.Session) bool {
	return hasAny(sess.Roles, RoleAdmin, RoleDispatcher)
}

// CanActOnSite reports whether the session may check in or out on behalf
// of the assigned installer. Dispatchers may assign work but not perform
// it; only admins step in for an installer.
func (Capabilities) CanActOnSite(sess installs.Session) bool {
	return hasAny(sess.Roles, RoleAdmin)
}

func hasAny(roles []string, wanted ...string) bool {
	for _, role := range roles {
		for _, want := range wanted {
			if role == want {
				return true
			}
		}
	}
	return false
}
