// Package permissions holds the static role to permission table consulted by
// route guards. Permissions are "action:resource" strings.
package permissions

import (
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
)

const (
	Wildcard = "*"

	ReadTickets     = "read:tickets"
	CreateTickets   = "create:tickets"
	WriteTickets    = "write:tickets"
	DeleteTickets   = "delete:tickets"
	AssignTickets   = "assign:tickets"
	EscalateTickets = "escalate:tickets"

	ReadComments          = "read:comments"
	WriteComments         = "write:comments"
	WriteInternalComments = "write:internal_comments"
	DeleteComments        = "delete:comments"

	ReadUsers   = "read:users"
	WriteUsers  = "write:users"
	DeleteUsers = "delete:users"

	ReadCompanies   = "read:companies"
	WriteCompanies  = "write:companies"
	ManageCompanies = "manage:companies"

	ReadContacts  = "read:contacts"
	WriteContacts = "write:contacts"

	ReadClientCompanies  = "read:client_companies"
	WriteClientCompanies = "write:client_companies"

	ReadProjects     = "read:projects"
	WriteProjects    = "write:projects"
	WriteTimeEntries = "write:time_entries"

	ReadChat  = "read:chat"
	WriteChat = "write:chat"

	ReadPartnerships  = "read:partnerships"
	WritePartnerships = "write:partnerships"
)

// All lists every permission the API checks
var All = []string{
	ReadTickets, CreateTickets, WriteTickets, DeleteTickets, AssignTickets, EscalateTickets,
	ReadComments, WriteComments, WriteInternalComments, DeleteComments,
	ReadUsers, WriteUsers, DeleteUsers,
	ReadCompanies, WriteCompanies, ManageCompanies,
	ReadContacts, WriteContacts,
	ReadClientCompanies, WriteClientCompanies,
	ReadProjects, WriteProjects, WriteTimeEntries,
	ReadChat, WriteChat,
	ReadPartnerships, WritePartnerships,
}

var table = map[models.Role][]string{
	models.RoleAdmin: All,
	models.RoleCompanyManager: {
		ReadTickets, CreateTickets, WriteTickets, DeleteTickets, AssignTickets, EscalateTickets,
		ReadComments, WriteComments, WriteInternalComments, DeleteComments,
		ReadUsers, WriteUsers, DeleteUsers,
		ReadCompanies, WriteCompanies,
		ReadContacts, WriteContacts,
		ReadClientCompanies, WriteClientCompanies,
		ReadProjects, WriteProjects, WriteTimeEntries,
		ReadChat, WriteChat,
		ReadPartnerships, WritePartnerships,
	},
	models.RoleSupportAgent: {
		ReadTickets, CreateTickets, WriteTickets, AssignTickets, EscalateTickets,
		ReadComments, WriteComments, WriteInternalComments,
		ReadUsers,
		ReadCompanies,
		ReadContacts, WriteContacts,
		ReadClientCompanies,
		ReadProjects, WriteTimeEntries,
		ReadChat, WriteChat,
		ReadPartnerships,
	},
	models.RoleCustomer: {
		ReadTickets, CreateTickets,
		ReadComments, WriteComments,
		ReadChat, WriteChat,
	},
}

// For returns a copy of the permissions granted to role
func For(role models.Role) []string {
	perms := table[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasPermission reports whether role holds permission
func HasPermission(role models.Role, permission string) bool {
	for _, p := range table[role] {
		if p == permission || p == Wildcard {
			return true
		}
	}
	return false
}

// CanModifyTicket narrows a role-level write permission to a ticket instance.
// Staff may touch any ticket of their own company; customers only tickets they filed.
func CanModifyTicket(user *models.User, ticket *models.Ticket) bool {
	if user.Role == models.RoleAdmin {
		return true
	}
	if user.CompanyID != ticket.CompanyID {
		return false
	}
	if user.Role.IsStaff() {
		return true
	}
	return ticket.CreatedBy == user.ID
}

// CanViewTicket is the read counterpart of CanModifyTicket
func CanViewTicket(user *models.User, ticket *models.Ticket) bool {
	return CanModifyTicket(user, ticket)
}
