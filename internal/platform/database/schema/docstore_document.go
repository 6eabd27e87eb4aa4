package schema

// DocstoreDocumentTable represents the 'docstore.document' table: the
// generic document store backing internal/docstore's Postgres adapter.
// Documents carry their own revision tag for optimistic concurrency and
// an opaque JSONB body; views are computed from the body at query time
// rather than stored as separate columns.
type DocstoreDocumentTable struct {
	Table     string
	ID        string
	Rev       string
	Data      string
	UpdatedAt string
}

// DocstoreDocument is the schema definition for docstore.document.
var DocstoreDocument = DocstoreDocumentTable{
	Table:     "docstore.document",
	ID:        "id",
	Rev:       "rev",
	Data:      "data",
	UpdatedAt: "updatedat",
}

func (t DocstoreDocumentTable) Columns() []string {
	return []string{t.ID, t.Rev, t.Data, t.UpdatedAt}
}
