package service

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Relationship of a caller to a ticket.
const (
	RelationAdministrator = "administrator"
	RelationOwner         = "owner"
	RelationMember        = "member"
)

// Permission is a (resource, action) pair checked by AccessPolicy.
type Permission struct {
	Resource string
	Action   string
}

var (
	PermTicketCreate     = Permission{"ticket", "create"}
	PermTicketList       = Permission{"ticket", "list"}
	PermTicketView       = Permission{"ticket", "view"}
	PermTicketUpdate     = Permission{"ticket", "update"}
	PermTicketDelete     = Permission{"ticket", "delete"}
	PermMessageCreate    = Permission{"message", "create"}
	PermAttachmentCreate = Permission{"attachment", "create"}
	PermAttachmentDelete = Permission{"attachment", "delete"}
)

const accessModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// Ticket policy rows. Viewing covers the thread and the attachments.
var accessPolicies = [][]string{
	{RelationAdministrator, "ticket", "create"},
	{RelationAdministrator, "ticket", "list"},
	{RelationAdministrator, "ticket", "view"},
	{RelationAdministrator, "ticket", "update"},
	{RelationAdministrator, "ticket", "delete"},
	{RelationAdministrator, "message", "create"},
	{RelationAdministrator, "attachment", "create"},
	{RelationAdministrator, "attachment", "delete"},

	{RelationOwner, "ticket", "view"},
	{RelationOwner, "message", "create"},
	{RelationOwner, "attachment", "create"},

	{RelationMember, "ticket", "create"},
	{RelationMember, "ticket", "list"},
}

// AccessPolicy decides whether an identity may perform a permission on a ticket.
type AccessPolicy struct {
	enforcer *casbin.Enforcer
}

// NewAccessPolicy loads the fixed policy into an in-memory enforcer.
func NewAccessPolicy() (*AccessPolicy, error) {
	m, err := model.NewModelFromString(accessModel)
	if err != nil {
		return nil, fmt.Errorf("load access model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	if _, err := enforcer.AddPolicies(accessPolicies); err != nil {
		return nil, fmt.Errorf("add access policies: %w", err)
	}
	return &AccessPolicy{enforcer: enforcer}, nil
}

// Relation resolves how the identity relates to the ticket. Ownership is
// the creator only; assignment does not count. Ticket may be nil for
// operations that are not ticket scoped.
func Relation(identity domain.Identity, ticket *domain.Ticket) string {
	switch {
	case identity.Role == domain.RoleAdministrator:
		return RelationAdministrator
	case identity.Role != domain.RoleMember:
		return ""
	case ticket.IsOwnedBy(identity.AccountID):
		return RelationOwner
	default:
		return RelationMember
	}
}

// Allowed reports whether identity may perform perm on ticket.
func (p *AccessPolicy) Allowed(identity domain.Identity, ticket *domain.Ticket, perm Permission) (bool, error) {
	relation := Relation(identity, ticket)
	if relation == "" {
		return false, nil
	}
	return p.enforcer.Enforce(relation, perm.Resource, perm.Action)
}
