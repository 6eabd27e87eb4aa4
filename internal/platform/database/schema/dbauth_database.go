package schema

// DBAuthDatabaseTable represents the 'dbauth.database' table: the
// registry of provisioned personal databases, standing in for the
// physical CREATE/DROP DATABASE a document-store backend would perform.
type DBAuthDatabaseTable struct {
	Table        string
	PhysicalName string
	DBType       string
	AdminRoles   string
	MemberRoles  string
	DesignDocs   string
	CreatedAt    string
}

// DBAuthDatabase is the schema definition for dbauth.database.
var DBAuthDatabase = DBAuthDatabaseTable{
	Table:        "dbauth.database",
	PhysicalName: "physicalname",
	DBType:       "dbtype",
	AdminRoles:   "adminroles",
	MemberRoles:  "memberroles",
	DesignDocs:   "designdocs",
	CreatedAt:    "createdat",
}

func (t DBAuthDatabaseTable) Columns() []string {
	return []string{t.PhysicalName, t.DBType, t.AdminRoles, t.MemberRoles, t.DesignDocs, t.CreatedAt}
}
