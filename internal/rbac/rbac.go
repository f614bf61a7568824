package rbac

type Role string
type Action string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

const (
	// ActionView covers every read inside a workspace the caller belongs to.
	ActionView Action = "view"
	// ActionMutate covers project and task creation and edits.
	ActionMutate Action = "mutate"
	// ActionManage covers workspace settings, workspace deletion, invite-code
	// rotation and member-role changes.
	ActionManage Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleMember:
		return action == ActionView || action == ActionMutate
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleAdmin, RoleMember:
		return Role(role)
	default:
		return RoleMember
	}
}
