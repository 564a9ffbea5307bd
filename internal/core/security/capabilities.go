// Package security holds the capability policy: which role may do what,
// optionally restricted by a CEL condition over the user and the resource.
package security

// Role is a back-office user role.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleComptable     Role = "comptable"
	RoleTC            Role = "tc"
	RoleCommercial    Role = "commercial"
	RoleRH            Role = "rh"
	RoleManagerAgence Role = "manager_agence"
	RoleEmploye       Role = "employe"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleComptable, RoleTC, RoleCommercial, RoleRH, RoleManagerAgence, RoleEmploye}

// IsValidRole reports whether r is a known role.
func IsValidRole(r string) bool {
	for _, role := range Roles {
		if string(role) == r {
			return true
		}
	}
	return false
}

// Capability is a named permission checked by routes and services.
type Capability string

const (
	CapUsersRead     Capability = "users:read"
	CapUsersManage   Capability = "users:manage"
	CapAgencesManage Capability = "agences:manage"

	CapClientsRead  Capability = "clients:read"
	CapClientsWrite Capability = "clients:write"

	CapArticlesRead  Capability = "articles:read"
	CapArticlesWrite Capability = "articles:write"

	CapStockRead      Capability = "stock:read"
	CapStockTransfer  Capability = "stock:transfer"
	CapStockInventory Capability = "stock:inventory"

	CapCommandesRead     Capability = "commandes:read"
	CapCommandesCreate   Capability = "commandes:create"
	CapCommandesValidate Capability = "commandes:validate"
	CapCommandesDeliver  Capability = "commandes:deliver"
	CapCommandesInvoice  Capability = "commandes:invoice"
	CapCommandesCancel   Capability = "commandes:cancel"

	CapFacturesRead  Capability = "factures:read"
	CapFacturesWrite Capability = "factures:write"

	CapBCGRead  Capability = "bcg:read"
	CapBCGWrite Capability = "bcg:write"

	CapRHRead          Capability = "rh:read"
	CapRHWrite         Capability = "rh:write"
	CapRHSelf          Capability = "rh:self"
	CapRHApprove       Capability = "rh:approve"
	CapCommissionsCalc Capability = "commissions:calc"

	CapUpload Capability = "upload:write"

	// CapScopeAll lifts the agence restriction on lists.
	CapScopeAll Capability = "scope:all"
)

// Row conditions.
const (
	condSameAgence   = `resource.agence_id == user.agence_id`
	condOwnClient    = `resource.commercial_id == user.id`
	condOwnEmployee  = `resource.user_id == user.id`
	condOwnOrAgence  = `resource.commercial_id == user.id || resource.agence_id == user.agence_id`
	condFromOwnDepot = `resource.agence_id == user.agence_id || resource.to_agence_id == user.agence_id`
)

// DefaultRules is the built-in role matrix. Admin holds every capability.
func DefaultRules() map[Role][]Grant {
	readCatalog := []Grant{{Capability: CapArticlesRead}, {Capability: CapStockRead}}

	return map[Role][]Grant{
		RoleComptable: append([]Grant{
			{Capability: CapScopeAll},
			{Capability: CapClientsRead},
			{Capability: CapCommandesRead},
			{Capability: CapCommandesInvoice},
			{Capability: CapFacturesRead},
			{Capability: CapFacturesWrite},
			{Capability: CapRHRead},
			{Capability: CapCommissionsCalc},
		}, readCatalog...),
		RoleTC: append([]Grant{
			{Capability: CapClientsRead},
			{Capability: CapClientsWrite},
			{Capability: CapCommandesRead},
			{Capability: CapCommandesCreate},
			{Capability: CapCommandesValidate, Condition: condSameAgence},
			{Capability: CapCommandesCancel, Condition: condSameAgence},
			{Capability: CapFacturesRead},
			{Capability: CapBCGRead},
			{Capability: CapRHSelf, Condition: condOwnEmployee},
		}, readCatalog...),
		RoleCommercial: append([]Grant{
			{Capability: CapClientsRead},
			{Capability: CapClientsWrite, Condition: condOwnClient},
			{Capability: CapCommandesRead},
			{Capability: CapCommandesCreate},
			{Capability: CapCommandesCancel, Condition: condOwnClient},
			{Capability: CapBCGRead},
			{Capability: CapRHSelf, Condition: condOwnEmployee},
		}, readCatalog...),
		RoleRH: {
			{Capability: CapScopeAll},
			{Capability: CapUsersRead},
			{Capability: CapRHRead},
			{Capability: CapRHWrite},
			{Capability: CapRHSelf, Condition: condOwnEmployee},
			{Capability: CapRHApprove},
			{Capability: CapCommissionsCalc},
		},
		RoleManagerAgence: append([]Grant{
			{Capability: CapUsersRead},
			{Capability: CapClientsRead},
			{Capability: CapClientsWrite},
			{Capability: CapArticlesWrite},
			{Capability: CapStockTransfer, Condition: condFromOwnDepot},
			{Capability: CapStockInventory, Condition: condSameAgence},
			{Capability: CapCommandesRead},
			{Capability: CapCommandesCreate},
			{Capability: CapCommandesValidate, Condition: condSameAgence},
			{Capability: CapCommandesDeliver, Condition: condSameAgence},
			{Capability: CapCommandesCancel, Condition: condOwnOrAgence},
			{Capability: CapFacturesRead},
			{Capability: CapBCGRead},
			{Capability: CapBCGWrite, Condition: condSameAgence},
			{Capability: CapRHRead},
			{Capability: CapRHSelf, Condition: condOwnEmployee},
			{Capability: CapRHApprove},
		}, readCatalog...),
		RoleEmploye: append([]Grant{
			{Capability: CapRHSelf, Condition: condOwnEmployee},
		}, readCatalog...),
	}
}
