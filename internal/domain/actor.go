package domain

// ActorKind differentiates the callers allowed to touch a complaint.
type ActorKind string

const (
	ActorKindCitizen  ActorKind = "CITIZEN"
	ActorKindEmployee ActorKind = "EMPLOYEE"
	ActorKindAdmin    ActorKind = "ADMIN"
)

// Actor is the authenticated caller of a lifecycle or workflow operation.
// It is implemented only by Citizen, Employee and Admin.
type Actor interface {
	ActorID() string
	DisplayName() string
	Kind() ActorKind
	sealed()
}

// Citizen files complaints and answers information requests.
type Citizen struct {
	ID   string
	Name string
}

// Employee processes complaints addressed to their agency.
type Employee struct {
	ID     string
	Name   string
	Agency GovernmentAgency
}

// Admin is a platform administrator who may override any state lock.
type Admin struct {
	ID   string
	Name string
}

func (c Citizen) ActorID() string     { return c.ID }
func (c Citizen) DisplayName() string { return c.Name }
func (Citizen) Kind() ActorKind       { return ActorKindCitizen }
func (Citizen) sealed()               {}

func (e Employee) ActorID() string     { return e.ID }
func (e Employee) DisplayName() string { return e.Name }
func (Employee) Kind() ActorKind       { return ActorKindEmployee }
func (Employee) sealed()               {}

func (a Admin) ActorID() string     { return a.ID }
func (a Admin) DisplayName() string { return a.Name }
func (Admin) Kind() ActorKind       { return ActorKindAdmin }
func (Admin) sealed()               {}
