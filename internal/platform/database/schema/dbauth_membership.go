package schema

// DBAuthMembershipTable represents the 'dbauth.membership' table: which
// credential keys are authorized against which physical database, and
// with which roles.
type DBAuthMembershipTable struct {
	Table        string
	PhysicalName string
	Key          string
	Roles        string
	GrantedAt    string
}

// DBAuthMembership is the schema definition for dbauth.membership.
var DBAuthMembership = DBAuthMembershipTable{
	Table:        "dbauth.membership",
	PhysicalName: "physicalname",
	Key:          "key",
	Roles:        "roles",
	GrantedAt:    "grantedat",
}

func (t DBAuthMembershipTable) Columns() []string {
	return []string{t.PhysicalName, t.Key, t.Roles, t.GrantedAt}
}
