// Package auth provides permission-based access control for port writes.
package auth

// Permission defines an action that can be controlled
type Permission string

// Standard permissions. The port and stats names match the audit
// operations they gate.
const (
	PermPortAdd    Permission = "port.add"
	PermPortModify Permission = "port.modify"
	PermPortDelete Permission = "port.delete"
	PermPortClear  Permission = "port.clear"
	PermStatsClear Permission = "stats.clear"

	PermProfileApply Permission = "profile.apply"
	PermConfigSave   Permission = "config.save"
	PermAuditView    Permission = "audit.view"

	PermAll Permission = "all" // Superuser - allows everything
)

// Policy maps permissions to the users and groups holding them. It is
// kept in the settings file:
//
//	"access": {
//	  "super_users": ["admin"],
//	  "user_groups": {"neteng": ["alice", "bob"]},
//	  "permissions": {"port.modify": ["neteng"], "all": ["root"]}
//	}
//
// An empty policy grants every permission to everyone.
type Policy struct {
	SuperUsers  []string            `json:"super_users,omitempty"`
	UserGroups  map[string][]string `json:"user_groups,omitempty"`
	Permissions map[string][]string `json:"permissions,omitempty"`
}

// Open reports whether the policy restricts nothing.
func (p *Policy) Open() bool {
	return p == nil || (len(p.SuperUsers) == 0 && len(p.Permissions) == 0)
}

// Context describes the object a permission is checked against
type Context struct {
	Device string
	Port   string
}

// NewContext creates an empty permission context
func NewContext() *Context {
	return &Context{}
}

// WithDevice sets the device
func (c *Context) WithDevice(device string) *Context {
	c.Device = device
	return c
}

// WithPort sets the port
func (c *Context) WithPort(port string) *Context {
	c.Port = port
	return c
}
