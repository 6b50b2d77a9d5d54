package model

// Role values returned by the platform's auth endpoint.
const (
	RoleAdmin      = "ADMIN"
	RolePointFocal = "POINT_FOCAL"
)

// User is the signed-in identity. Name is the key every notification call
// is made with.
type User struct {
	ID               int64  `json:"id"`
	Name             string `json:"username"`
	FirstName        string `json:"firstName,omitempty"`
	LastName         string `json:"lastName,omitempty"`
	Email            string `json:"email,omitempty"`
	Role             string `json:"role,omitempty"`
	InsuranceCompany string `json:"insuranceCompany,omitempty"`
}

// DisplayName returns the best human label for the user.
func (u User) DisplayName() string {
	if u.FirstName != "" || u.LastName != "" {
		switch {
		case u.FirstName == "":
			return u.LastName
		case u.LastName == "":
			return u.FirstName
		default:
			return u.FirstName + " " + u.LastName
		}
	}
	return u.Name
}

// IsAdmin reports whether the user has the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
