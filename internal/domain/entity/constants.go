package entity

// Role is a user's approval role. The set is closed.
type Role string

const (
	RoleRequester  Role = "requester"
	RoleApprover   Role = "approver"
	RoleDeptAdmin  Role = "dept_admin"
	RoleSuperAdmin Role = "super_admin"
)

// IsValid returns true if the role is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleRequester, RoleApprover, RoleDeptAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// CanApprove reports whether the role may own an approval step
func (r Role) CanApprove() bool {
	switch r {
	case RoleApprover, RoleDeptAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role has administrative privileges
func (r Role) IsAdmin() bool {
	return r == RoleDeptAdmin || r == RoleSuperAdmin
}

func (r Role) String() string {
	return string(r)
}

// Category of a purchase request
type Category string

const (
	CategoryEquipment Category = "EQUIPMENT"
	CategorySoftware  Category = "SOFTWARE"
	CategoryService   Category = "SERVICE"
	CategoryTravel    Category = "TRAVEL"
)

// IsValid returns true if the category is known
func (c Category) IsValid() bool {
	switch c {
	case CategoryEquipment, CategorySoftware, CategoryService, CategoryTravel:
		return true
	}
	return false
}

// Urgency of a purchase request
type Urgency string

const (
	UrgencyNormal Urgency = "NORMAL"
	UrgencyUrgent Urgency = "URGENT"
)

// IsValid returns true if the urgency is known
func (u Urgency) IsValid() bool {
	return u == UrgencyNormal || u == UrgencyUrgent
}

// Notification status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)
