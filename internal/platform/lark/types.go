package lark

// User is a contact directory entry.
type User struct {
	OpenID          string
	UserID          string
	Name            string
	Email           string
	EnterpriseEmail string
}

// WorkEmail prefers the enterprise mailbox over the personal one.
func (u *User) WorkEmail() string {
	if u.EnterpriseEmail != "" {
		return u.EnterpriseEmail
	}
	return u.Email
}

// Task holds the task fields the sync reads.
type Task struct {
	GUID        string
	Summary     string
	Description string
	CompletedAt string
	URL         string
}
