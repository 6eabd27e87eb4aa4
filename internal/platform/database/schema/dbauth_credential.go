package schema

// DBAuthCredentialTable represents the 'dbauth.credential' table: the
// backing document store's own auth database, one row per issued session
// token key.
type DBAuthCredentialTable struct {
	Table        string
	ID           string
	Key          string
	UserID       string
	PasswordHash string
	Roles        string
	ExpiresAt    string
	CreatedAt    string
}

// DBAuthCredential is the schema definition for dbauth.credential. ID is
// a UUIDv7 surrogate key kept distinct from Key (the session token's own
// identifier, which is this table's natural unique constraint).
var DBAuthCredential = DBAuthCredentialTable{
	Table:        "dbauth.credential",
	ID:           "id",
	Key:          "key",
	UserID:       "userid",
	PasswordHash: "passwordhash",
	Roles:        "roles",
	ExpiresAt:    "expiresat",
	CreatedAt:    "createdat",
}

func (t DBAuthCredentialTable) Columns() []string {
	return []string{t.ID, t.Key, t.UserID, t.PasswordHash, t.Roles, t.ExpiresAt, t.CreatedAt}
}
