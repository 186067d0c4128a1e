package push

import "github.com/google/uuid"

// PathToken is one step of a target expression: a collection name plus an
// optional identifier narrowing it to a single entity. A zero identifier
// (no ID, no name) selects the whole collection.
type PathToken struct {
	Collection string    `json:"collection"`
	ID         uuid.UUID `json:"id,omitempty"`
	Name       string    `json:"name,omitempty"`
}

// HasIdentifier reports whether the token narrows the collection to one entity.
func (t PathToken) HasIdentifier() bool {
	return t.ID != uuid.Nil || t.Name != ""
}

// TargetPath is a chain of path tokens rooted at the application, resolving
// lazily to a paged sequence of entity references. Examples:
//
//	devices                   every device in the application
//	users/jane                one user, expanded via her devices
//	groups/staff              one group, expanded via users then devices
//	groups/staff/users        equivalent explicit chain
type TargetPath struct {
	Tokens []PathToken `json:"tokens"`
}

// NewTargetPath builds a target path from tokens.
func NewTargetPath(tokens ...PathToken) TargetPath {
	return TargetPath{Tokens: tokens}
}

// IsZero reports whether the path selects nothing.
func (p TargetPath) IsZero() bool {
	return len(p.Tokens) == 0
}

// Chain returns the token chain the resolver should walk. A single "groups"
// token implicitly chains a "users" query so group members are expanded, and
// resolution below user level always descends into "devices". This mirrors
// how the management API builds recipient queries from request paths.
func (p TargetPath) Chain() []PathToken {
	if len(p.Tokens) != 1 {
		return p.Tokens
	}
	token := p.Tokens[0]
	if token.Collection == CollectionGroups {
		return []PathToken{token, {Collection: CollectionUsers}}
	}
	return p.Tokens
}
