package model

// Category is a user-visible spending bucket. Names are unique per user.
type Category struct {
	UserID   int64
	Name     string
	IsCustom bool
}
