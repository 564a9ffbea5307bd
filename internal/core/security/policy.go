package security

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/cel-go/cel"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
)

// Grant gives a role a capability. A non-empty Condition is a CEL boolean
// expression over `user` (id, role, agence_id) and `resource` (a map supplied by the caller).
type Grant struct {
	Capability Capability
	Condition  string
}

type compiledGrant struct {
	condition string
	program   cel.Program
}

// Policy is an immutable, compiled role matrix.
type Policy struct {
	grants map[Role]map[Capability]compiledGrant
}

// NewPolicy compiles rules. Admin is granted everything implicitly.
func NewPolicy(rules map[Role][]Grant) (*Policy, error) {
	env, err := cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("resource", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	p := &Policy{grants: make(map[Role]map[Capability]compiledGrant, len(rules))}
	for role, grants := range rules {
		byCap := make(map[Capability]compiledGrant, len(grants))
		for _, g := range grants {
			cg := compiledGrant{condition: g.Condition}
			if g.Condition != "" {
				ast, iss := env.Compile(g.Condition)
				if iss != nil && iss.Err() != nil {
					return nil, fmt.Errorf("role %s capability %s: %w", role, g.Capability, iss.Err())
				}
				if !ast.OutputType().IsExactType(cel.BoolType) {
					return nil, fmt.Errorf("role %s capability %s: condition must be boolean", role, g.Capability)
				}
				prg, err := env.Program(ast)
				if err != nil {
					return nil, fmt.Errorf("role %s capability %s: %w", role, g.Capability, err)
				}
				cg.program = prg
			}
			byCap[g.Capability] = cg
		}
		p.grants[role] = byCap
	}
	return p, nil
}

// DefaultPolicy compiles DefaultRules.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultRules())
	if err != nil {
		panic(err)
	}
	return p
}

// Capabilities returns the sorted capabilities of role, as carried in access tokens.
func (p *Policy) Capabilities(role string) []string {
	if Role(role) == RoleAdmin {
		return []string{"*"}
	}
	caps := make([]string, 0, len(p.grants[Role(role)]))
	for c := range p.grants[Role(role)] {
		caps = append(caps, string(c))
	}
	slices.Sort(caps)
	return caps
}

// Allows reports whether the role of user holds capability, ignoring row conditions.
// Routes use it; services call Authorize once the resource is loaded.
func (p *Policy) Allows(user *appctx.UserContext, capability Capability) bool {
	if user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	_, ok := p.grants[Role(user.Role)][capability]
	return ok
}

// IsConditional reports whether the capability of role is restricted by a row condition.
func (p *Policy) IsConditional(role string, capability Capability) bool {
	g, ok := p.grants[Role(role)][capability]
	return ok && g.program != nil
}

// Authorize checks capability for the user in ctx against resource.
func (p *Policy) Authorize(ctx context.Context, capability Capability, resource map[string]any) error {
	user := appctx.GetUser(ctx)
	if user == nil {
		return apperror.NewUnauthorized("authentication required")
	}
	if user.IsAdmin() {
		return nil
	}

	g, ok := p.grants[Role(user.Role)][capability]
	if !ok {
		return forbidden(capability)
	}
	if g.program == nil {
		return nil
	}

	if resource == nil {
		resource = map[string]any{}
	}
	out, _, err := g.program.Eval(map[string]any{
		"user": map[string]any{
			"id":        user.UserID,
			"role":      user.Role,
			"agence_id": user.AgenceID,
		},
		"resource": resource,
	})
	if err != nil {
		// A missing resource key denies access.
		return forbidden(capability).WithCause(err)
	}
	if allowed, _ := out.Value().(bool); !allowed {
		return forbidden(capability).WithDetail("condition", g.condition)
	}
	return nil
}

// AgenceScope returns the agence a list must be restricted to, or "" when the user sees every agence.
func (p *Policy) AgenceScope(ctx context.Context) string {
	user := appctx.GetUser(ctx)
	if user == nil || p.Allows(user, CapScopeAll) {
		return ""
	}
	return user.AgenceID
}

func forbidden(c Capability) *apperror.AppError {
	return apperror.NewForbidden(fmt.Sprintf("capability %s required", c)).WithDetail("capability", string(c))
}
