// Package domain defines the persistence models for users, groups and
// commands. These types are mapped with GORM and form the core data layer
// of the bot backend. Table names are supplied by configuration, so none of
// the models implement the GORM tabler interface.
package domain

// Role is the access level of a user.
type Role string

const (
	RoleRoot    Role = "ROOT"
	RoleAdmin   Role = "ADMIN"
	RoleUser    Role = "USER"
	RoleService Role = "SERVICE"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleRoot, RoleAdmin, RoleUser, RoleService:
		return true
	}
	return false
}

// In reports whether r is contained in roles. The empty role is never a member.
func (r Role) In(roles ...Role) bool {
	if r == "" {
		return false
	}
	for _, x := range roles {
		if r == x {
			return true
		}
	}
	return false
}

// User is a chat-platform account known to the bot.
//
// Fields:
//   - UUID: internal primary key, immutable once assigned.
//   - ExternalID: Telegram user id (indexed, expected but not enforced unique).
//   - Username: Telegram username, refreshed on every inbound message.
//   - APIKey: secret issued at most once; nil until issued.
//   - Role: access level (ROOT|ADMIN|USER|SERVICE).
//   - CreatedAt / UpdatedAt: Unix epoch milliseconds.
type User struct {
	UUID       string  `json:"uuid"              gorm:"column:uuid;type:char(36);primaryKey"`
	ExternalID string  `json:"id"                gorm:"column:external_id;type:varchar(64);index"`
	Username   string  `json:"username"          gorm:"column:username;type:varchar(255)"`
	APIKey     *string `json:"apiKey"            gorm:"column:api_key;type:varchar(64)"`
	Role       Role    `json:"role,omitempty"    gorm:"column:role;type:varchar(16)"`
	CreatedAt  int64   `json:"createdAt"         gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt  int64   `json:"updatedAt"         gorm:"column:updated_at;autoUpdateTime:milli"`
}

// HasAPIKey reports whether the user holds a non-empty api key.
func (u *User) HasAPIKey() bool {
	return u != nil && u.APIKey != nil && *u.APIKey != ""
}

// Key returns the stored api key or "" when none was issued.
func (u *User) Key() string {
	if u == nil || u.APIKey == nil {
		return ""
	}
	return *u.APIKey
}

// Group is a Telegram group or supergroup the bot has seen.
type Group struct {
	UUID       string `json:"uuid"      gorm:"column:uuid;type:char(36);primaryKey"`
	ExternalID string `json:"id"        gorm:"column:external_id;type:varchar(64);index"`
	Title      string `json:"title"     gorm:"column:title;type:varchar(255)"`
	CreatedAt  int64  `json:"createdAt" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt  int64  `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// Command maps a slash-command to an externally hosted webhook.
// Command is the primary key (e.g. "/weather"); ownership is the apiKey of
// the user that registered it.
type Command struct {
	UUID        string `json:"uuid"        gorm:"column:uuid;type:char(36);uniqueIndex"`
	Command     string `json:"command"     gorm:"column:command;type:varchar(128);primaryKey"`
	Endpoint    string `json:"endpoint"    gorm:"column:endpoint;type:text"`
	Description string `json:"description" gorm:"column:description;type:text"`
	IsEnabled   bool   `json:"isEnabled"   gorm:"column:is_enabled"`
	APIKey      string `json:"apiKey"      gorm:"column:api_key;type:varchar(64);index"`
	CreatedAt   int64  `json:"createdAt"   gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt   int64  `json:"updatedAt"   gorm:"column:updated_at;autoUpdateTime:milli"`
}

// PublicCommand is the redacted view of a Command returned to callers that
// neither own the command nor hold an elevated role.
type PublicCommand struct {
	Command   string `json:"command"`
	Endpoint  string `json:"endpoint"`
	IsEnabled bool   `json:"isEnabled"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Public strips the owner reference and identifiers from c.
func (c Command) Public() PublicCommand {
	return PublicCommand{
		Command:   c.Command,
		Endpoint:  c.Endpoint,
		IsEnabled: c.IsEnabled,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
