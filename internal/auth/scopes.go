package auth

// Scopes granted to player tokens.
const (
	ScopePlayerRead  = "player:read"
	ScopePlayerWrite = "player:write"
)

// PlayerScopes is the scope set issued after account linking.
func PlayerScopes() []string {
	return []string{ScopePlayerRead, ScopePlayerWrite}
}
