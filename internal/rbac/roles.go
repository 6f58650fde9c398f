package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner       = "owner"
	RoleTeamMember  = "team_member"
	RoleAgencyAdmin = "agency_admin"
)

// IsAgencyAdmin reports the cross-client override role: agency admins may
// resolve any escalation and read any client's compliance report.
func IsAgencyAdmin(role string) bool { return role == RoleAgencyAdmin }
