package domain

// Role identifies what kind of user an actor is. The identity provider
// is trusted to have verified it; no credential checks happen here.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated identity an operation runs as. Every
// mutating operation takes one explicitly instead of digging it out of
// a request object.
type Actor struct {
	ID   string
	Role Role
	Name string
}

// Customer builds a customer actor.
func Customer(id string) Actor {
	return Actor{ID: id, Role: RoleCustomer}
}

// Technician builds a technician actor.
func Technician(id string) Actor {
	return Actor{ID: id, Role: RoleTechnician}
}

// Admin builds an admin actor.
func Admin(id string) Actor {
	return Actor{ID: id, Role: RoleAdmin}
}

// WithName returns a copy of the actor carrying a display name.
func (a Actor) WithName(name string) Actor {
	a.Name = name
	return a
}

// IsCustomer reports whether the actor acts as a customer.
func (a Actor) IsCustomer() bool { return a.Role == RoleCustomer }

// IsTechnician reports whether the actor acts as a technician.
func (a Actor) IsTechnician() bool { return a.Role == RoleTechnician }

// IsAdmin reports whether the actor acts as an admin.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
