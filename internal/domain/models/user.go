package models

const RoleUser = "USER"

// User is a registered account. Username is the primary key.
type User struct {
	Username string
	PassHash []byte
	Role     string
}
