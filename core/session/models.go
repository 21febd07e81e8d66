package session

import (
	"time"

	"github.com/taskora/taskora-go/core"
)

// Roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
)

// Profile is the application-level user record, distinct from the raw
// backend auth identity. At most one Profile is "current" per Manager.
type Profile struct {
	ID        string                 `json:"id"`
	Email     string                 `json:"email"`
	Name      string                 `json:"name"`
	Role      string                 `json:"role"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
	CreatedAt time.Time              `json:"created_at"` // UTC
	UpdatedAt time.Time              `json:"updated_at"` // UTC
}

func (p Profile) IsStudent() bool    { return p.Role == RoleStudent }
func (p Profile) IsInstructor() bool { return p.Role == RoleInstructor }

// merge applies upd on top of p, leaving unspecified fields untouched.
func (p *Profile) merge(upd ProfileUpdate) {
	if upd.Name != nil {
		p.Name = core.CleanString(*upd.Name)
	}
	if upd.Role != nil {
		p.Role = *upd.Role
	}
	if len(upd.Extra) > 0 {
		extra := make(map[string]interface{}, len(p.Extra)+len(upd.Extra))
		for k, v := range p.Extra {
			extra[k] = v
		}
		for k, v := range upd.Extra {
			extra[k] = v
		}
		p.Extra = extra
	}
	p.UpdatedAt = nowFunc().UTC()
}

// RegisterInput contains information needed to register a new account.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name"`
	Role     string `json:"role" validate:"omitempty,role"`
}

func (ri *RegisterInput) Validate() error {
	ri.Email = core.CleanString(ri.Email, true /* lower */)
	ri.Name = core.CleanString(ri.Name)
	ri.Role = core.CleanString(ri.Role, true /* lower */)
	return core.TranslateValidatorError(core.Validate.Struct(ri))
}

// ProfileUpdate defines what information may be provided to modify the
// current Profile. Nil fields are left as-is; Extra entries are merged
// on top of the existing ones.
type ProfileUpdate struct {
	Name  *string                `json:"name"`
	Role  *string                `json:"role" validate:"omitempty,role"`
	Extra map[string]interface{} `json:"extra"`
}

func (pu *ProfileUpdate) Validate() error {
	return core.TranslateValidatorError(core.Validate.Struct(pu))
}

// RegisterResult is what a successful registration yields. The backend
// may still require email confirmation before the account can sign in;
// PendingConfirmation and Message tell the caller so.
type RegisterResult struct {
	Profile             Profile
	PendingConfirmation bool
	Message             string
}
