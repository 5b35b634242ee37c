// Package auth turns bearer tokens into actors and decides what each actor
// may do.
package auth

import "context"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
	RoleStaff     Role = "staff"
	RoleCustomer  Role = "customer"
)

type Action string

const (
	ActionPurchase       Action = "purchase"
	ActionRefund         Action = "refund"
	ActionConfirmPayment Action = "confirm_payment"
	ActionCheckIn        Action = "check_in"
	ActionEditCapacity   Action = "edit_capacity"
	ActionViewReport     Action = "view_report"
	ActionViewTicket     Action = "view_ticket"
	// ActionManageSettings has no grant: only admins change payment settings.
	ActionManageSettings Action = "manage_settings"
)

type scope int

const (
	scopeOwn scope = iota + 1
	scopeAny
)

// grants lists what each role may do. Own-scoped grants only apply to
// resources owned by the actor: the buyer of a ticket, the organizer of an
// event. Admins may do everything.
var grants = map[Role]map[Action]scope{
	RoleCustomer: {
		ActionPurchase:   scopeOwn,
		ActionViewTicket: scopeOwn,
	},
	RoleStaff: {
		ActionCheckIn:        scopeAny,
		ActionConfirmPayment: scopeAny,
		ActionViewTicket:     scopeAny,
	},
	RoleOrganizer: {
		ActionEditCapacity: scopeOwn,
		ActionViewReport:   scopeOwn,
		ActionRefund:       scopeOwn,
	},
}

// Resource is what an action is applied to. OwnerID is empty when the
// resource has no owner.
type Resource struct {
	Kind    string
	OwnerID string
}

type Actor struct {
	ID    string `json:"id"`
	Roles []Role `json:"roles"`
}

func (a *Actor) Has(role Role) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Can reports whether the actor may perform action on res.
func (a *Actor) Can(action Action, res Resource) bool {
	if a == nil || a.ID == "" {
		return false
	}
	if a.Has(RoleAdmin) {
		return true
	}
	for _, role := range a.Roles {
		switch grants[role][action] {
		case scopeAny:
			return true
		case scopeOwn:
			if res.OwnerID == "" || res.OwnerID == a.ID {
				return true
			}
		}
	}
	return false
}

// ParseRoles keeps the known roles and drops the rest.
func ParseRoles(raw []string) []Role {
	roles := make([]Role, 0, len(raw))
	for _, r := range raw {
		switch role := Role(r); role {
		case RoleAdmin, RoleOrganizer, RoleStaff, RoleCustomer:
			roles = append(roles, role)
		}
	}
	return roles
}

type contextKey string

const actorKey contextKey = "actor"

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFrom returns the authenticated actor, or nil.
func ActorFrom(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorKey).(*Actor)
	return a
}
