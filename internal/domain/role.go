package domain

import "fmt"

// Role is an organization-scoped permission level. member < admin < owner.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool { return r.rank() >= min.rank() && r.rank() > 0 }

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r.rank() > 0 }

// Assignable reports whether r may be granted through invitations or role changes.
// Ownership is never handed out that way.
func (r Role) Assignable() bool { return r == RoleMember || r == RoleAdmin }

// CanManageInvitations covers listing, creating and cancelling invitations.
func CanManageInvitations(actor Role) error {
	if !actor.AtLeast(RoleAdmin) {
		return fmt.Errorf("only admins and owners can manage invitations: %w", ErrForbidden)
	}
	return nil
}

// CanRemoveMember applies the removal rules: admins and owners remove, only owners remove admins,
// nobody removes themselves and the owner is never removed.
func CanRemoveMember(actor, target Role, self bool) error {
	if !actor.AtLeast(RoleAdmin) {
		return fmt.Errorf("only admins and owners can remove members: %w", ErrForbidden)
	}
	if self {
		return fmt.Errorf("you cannot remove yourself: %w", ErrForbidden)
	}
	if target == RoleOwner {
		return fmt.Errorf("the organization owner cannot be removed: %w", ErrForbidden)
	}
	if target == RoleAdmin && actor != RoleOwner {
		return fmt.Errorf("only the owner can remove an admin: %w", ErrForbidden)
	}
	return nil
}

// CanChangeRole allows only the owner to move another non-owner member between member and admin.
func CanChangeRole(actor, target, newRole Role, self bool) error {
	if !newRole.Assignable() {
		return fmt.Errorf("role must be member or admin: %w", ErrBadRequest)
	}
	if actor != RoleOwner {
		return fmt.Errorf("only the owner can change roles: %w", ErrForbidden)
	}
	if self || target == RoleOwner {
		return fmt.Errorf("the owner role cannot be changed: %w", ErrForbidden)
	}
	return nil
}

// CanBill covers checkout; only the owner manages billing.
func CanBill(actor Role) error {
	if actor != RoleOwner {
		return fmt.Errorf("only the owner can manage billing: %w", ErrForbidden)
	}
	return nil
}

// CanClaimEarlyAdopter allows owners and admins.
func CanClaimEarlyAdopter(actor Role) error {
	if !actor.AtLeast(RoleAdmin) {
		return fmt.Errorf("only admins and owners can claim an early adopter slot: %w", ErrForbidden)
	}
	return nil
}
