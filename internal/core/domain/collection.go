package domain

// Collection names an isolated namespace in the knowledge store.
// Each collection holds exactly one document class.
type Collection string

const (
	// CollectionPolicy holds master policy clauses.
	CollectionPolicy Collection = "policy_master_collection"

	// CollectionClaims holds client claim submissions.
	CollectionClaims Collection = "claims_collection"
)

// Collections returns every collection in a stable order.
func Collections() []Collection {
	return []Collection{CollectionPolicy, CollectionClaims}
}

// IsValid reports whether c is a known collection.
func (c Collection) IsValid() bool {
	return c == CollectionPolicy || c == CollectionClaims
}

// String returns the persisted collection name.
func (c Collection) String() string {
	return string(c)
}

// DocumentKind is the class of a landing file.
type DocumentKind string

const (
	// DocumentKindPolicy is a master policy document.
	DocumentKindPolicy DocumentKind = "policy"

	// DocumentKindClaim is a client claim submission.
	DocumentKindClaim DocumentKind = "claim"
)

// Collection returns the collection documents of this kind belong in.
func (k DocumentKind) Collection() Collection {
	if k == DocumentKindPolicy {
		return CollectionPolicy
	}
	return CollectionClaims
}
