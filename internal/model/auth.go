package model

// AuthResult is the signup/signin response payload: the user document plus
// a freshly signed bearer token.
type AuthResult struct {
	Result User   `json:"result"`
	Token  string `json:"token"`
}

type TokenClaims struct {
	Username string
	UserID   string
}
