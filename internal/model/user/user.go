package user

// NameMaxLength is the longest name the users table accepts.
const NameMaxLength = 80

// User is a row of the users table.
type User struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
