// Package permission decides whether an actor may perform a verb on a resource
// with a given set of payload fields.
//
// Each resource has a Policy: an ordered list of rules. A request is allowed by
// the first rule that applies to the verb, matches the actor's relation to the
// record and whose field allow-list contains every field in the payload. When
// no rule allows it the whole request is denied; there is no partial grant.
package permission

import (
	"fmt"
	"strings"

	"task-manager/internal/apperror"
	"task-manager/internal/models"
)

type Verb string

const (
	VerbRead   Verb = "read"
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// VerbFromMethod maps an HTTP method to a Verb.
func VerbFromMethod(method string) Verb {
	switch strings.ToUpper(method) {
	case "POST":
		return VerbCreate
	case "PUT", "PATCH":
		return VerbUpdate
	case "DELETE":
		return VerbDelete
	default:
		return VerbRead
	}
}

// Target carries the facts about a record that rules may inspect.
// A nil *Target means a collection-level request (list, create) or a
// pre-lookup gate; relation predicates never match it.
type Target struct {
	AuthorID   *int64
	ExecutorID *int64
	UserID     *int64
}

func TaskTarget(t *models.Task) *Target {
	return &Target{AuthorID: t.AuthorID, ExecutorID: t.ExecutorID}
}

func UserTarget(u *models.User) *Target {
	id := u.ID
	return &Target{UserID: &id}
}

func TagTarget() *Target {
	return &Target{}
}

type Outcome int

const (
	Deny Outcome = iota
	Allow
	Unauthenticated
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "deny"
	}
}

type Decision struct {
	Outcome Outcome
	// Rule is the name of the rule that allowed the request.
	Rule string
	// Rejected lists payload fields outside the allow-list of the first rule
	// whose relation matched, for diagnostics.
	Rejected []string
}

func (d Decision) Allowed() bool { return d.Outcome == Allow }

// Err converts a non-allow decision into an API error.
func (d Decision) Err() error {
	switch d.Outcome {
	case Allow:
		return nil
	case Unauthenticated:
		return apperror.Unauthenticated("Authentication credentials were not provided")
	}
	if len(d.Rejected) > 0 {
		return apperror.Forbidden(fmt.Sprintf("You do not have permission to modify: %s", strings.Join(d.Rejected, ", ")))
	}
	return apperror.Forbidden("You do not have permission to perform this action")
}

type Rule struct {
	Name  string
	Verbs []Verb
	// Match reports whether the rule applies to the actor and target.
	// nil matches every authenticated actor.
	Match func(actor *models.User, target *Target) bool
	// Fields is the allow-list for the payload. nil means unrestricted.
	Fields FieldSet
}

func (r Rule) appliesTo(v Verb) bool {
	for _, rv := range r.Verbs {
		if rv == v {
			return true
		}
	}
	return false
}

type Policy struct {
	Resource string
	Rules    []Rule
}

// Authorize evaluates the policy for actor performing verb on target with the
// given payload fields. A nil actor is unauthenticated.
func (p *Policy) Authorize(actor *models.User, verb Verb, target *Target, fields FieldSet) Decision {
	if actor == nil {
		return Decision{Outcome: Unauthenticated}
	}

	var rejected []string
	for _, r := range p.Rules {
		if !r.appliesTo(verb) {
			continue
		}
		if r.Match != nil && !r.Match(actor, target) {
			continue
		}
		if r.Fields == nil || fields.SubsetOf(r.Fields) {
			return Decision{Outcome: Allow, Rule: r.Name}
		}
		if rejected == nil {
			rejected = fields.Minus(r.Fields)
		}
	}
	return Decision{Outcome: Deny, Rejected: rejected}
}

func isStaff(actor *models.User, _ *Target) bool {
	return actor.Staff()
}

func isAuthor(actor *models.User, t *Target) bool {
	return t != nil && t.AuthorID != nil && *t.AuthorID == actor.ID
}

func isExecutor(actor *models.User, t *Target) bool {
	return t != nil && t.ExecutorID != nil && *t.ExecutorID == actor.ID
}

func isSelf(actor *models.User, t *Target) bool {
	return t != nil && t.UserID != nil && *t.UserID == actor.ID
}

func isStaffSelf(actor *models.User, t *Target) bool {
	return isStaff(actor, t) && isSelf(actor, t)
}
