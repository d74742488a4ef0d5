package auth

import (
	"fmt"
	"sort"

	"github.com/newtron-network/portmgr/pkg/util"
)

// Checker validates user permissions
type Checker struct {
	policy      *Policy
	currentUser string
}

// NewChecker creates a permission checker for user. A nil policy allows
// everything.
func NewChecker(policy *Policy, user string) *Checker {
	return &Checker{policy: policy, currentUser: user}
}

// SetUser overrides the current user (for testing or sudo)
func (c *Checker) SetUser(username string) {
	c.currentUser = username
}

// CurrentUser returns the current username
func (c *Checker) CurrentUser() string {
	return c.currentUser
}

// Check verifies if the current user has a permission
func (c *Checker) Check(permission Permission, ctx *Context) error {
	return c.CheckUser(c.currentUser, permission, ctx)
}

// CheckUser verifies if a specific user has a permission
func (c *Checker) CheckUser(username string, permission Permission, ctx *Context) error {
	if c.policy.Open() || c.isSuperUser(username) {
		return nil
	}
	if c.hasPermission(username, permission) {
		return nil
	}
	return &PermissionError{
		User:       username,
		Permission: permission,
		Context:    ctx,
	}
}

func (c *Checker) isSuperUser(username string) bool {
	for _, su := range c.policy.SuperUsers {
		if su == username {
			return true
		}
	}
	return false
}

// hasPermission checks the "all" wildcard key, then the specific key.
func (c *Checker) hasPermission(username string, permission Permission) bool {
	if groups, ok := c.policy.Permissions[string(PermAll)]; ok && c.userInGroups(username, groups) {
		return true
	}
	groups, ok := c.policy.Permissions[string(permission)]
	return ok && c.userInGroups(username, groups)
}

func (c *Checker) userInGroups(username string, allowedGroups []string) bool {
	for _, group := range allowedGroups {
		// Check if it's a direct username match
		if group == username {
			return true
		}
		for _, member := range c.policy.UserGroups[group] {
			if member == username {
				return true
			}
		}
	}
	return false
}

// ListPermissionsForUser returns all permissions a user has, sorted
func (c *Checker) ListPermissionsForUser(username string) []Permission {
	if c.policy.Open() || c.isSuperUser(username) {
		return []Permission{PermAll}
	}
	var perms []Permission
	for permStr, groups := range c.policy.Permissions {
		if c.userInGroups(username, groups) {
			perms = append(perms, Permission(permStr))
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// PermissionError represents a permission denial
type PermissionError struct {
	User       string
	Permission Permission
	Context    *Context
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("permission denied: user '%s' does not have '%s' permission", e.User, e.Permission)
	if e.Context != nil {
		if e.Context.Port != "" {
			msg += fmt.Sprintf(" for port %s", e.Context.Port)
		}
		if e.Context.Device != "" {
			msg += fmt.Sprintf(" on device %s", e.Context.Device)
		}
	}
	return msg
}

func (e *PermissionError) Unwrap() error {
	return util.ErrPermissionDenied
}
