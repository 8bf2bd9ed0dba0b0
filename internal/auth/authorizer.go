package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jotacemarin/botnorrea-v2/internal/domain"
)

// DefaultIdentityKey is the policy context key carrying the caller record.
const DefaultIdentityKey = "Botnorrea-v2"

// Policy effects.
const (
	EffectAllow = "Allow"
	EffectDeny  = "Deny"
)

const (
	policyVersion = "2012-10-17"
	policyAction  = "execute-api:Invoke"
	principalID   = "user"
)

var errMalformedToken = errors.New("malformed token")

// Statement is a single policy statement.
type Statement struct {
	Action   string `json:"Action"`
	Effect   string `json:"Effect"`
	Resource string `json:"Resource"`
}

// PolicyDocument groups the statements of a Policy.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Policy is the outcome of an authorization decision in the shape API
// gateways expect from a token authorizer.
type Policy struct {
	PrincipalID    string            `json:"principalId"`
	PolicyDocument PolicyDocument    `json:"policyDocument"`
	Context        map[string]string `json:"context"`
}

// Allowed reports whether every statement of p allows access.
func (p Policy) Allowed() bool {
	if len(p.PolicyDocument.Statement) == 0 {
		return false
	}
	for _, s := range p.PolicyDocument.Statement {
		if s.Effect != EffectAllow {
			return false
		}
	}
	return true
}

// Authorizer evaluates bearer tokens against the user store.
type Authorizer struct {
	Users       UserFinder
	IdentityKey string
}

// NewAuthorizer builds an Authorizer; an empty identityKey selects
// DefaultIdentityKey.
func NewAuthorizer(users UserFinder, identityKey string) *Authorizer {
	if strings.TrimSpace(identityKey) == "" {
		identityKey = DefaultIdentityKey
	}
	return &Authorizer{Users: users, IdentityKey: identityKey}
}

// Authorize turns an "Authorization" header value into a Policy for
// methodArn. It never fails: malformed tokens, unknown users, lookup errors
// and key mismatches all produce a Deny policy with an empty context.
func (a *Authorizer) Authorize(ctx context.Context, authorizationToken, methodArn string) (p Policy) {
	start := time.Now()
	l := zerolog.Ctx(ctx)
	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("authorizer panicked")
			p = buildPolicy(methodArn, EffectDeny, nil)
		}
		l.Debug().Dur("elapsed", time.Since(start)).Bool("allowed", p.Allowed()).Msg("authorizer")
	}()

	id, apiKey, err := ParseToken(authorizationToken)
	if err != nil {
		return buildPolicy(methodArn, EffectDeny, nil)
	}
	if a.Users == nil {
		return buildPolicy(methodArn, EffectDeny, nil)
	}
	u, err := a.Users.GetByExternalID(ctx, id)
	if err != nil {
		l.Warn().Err(err).Msg("authorizer lookup failed")
		return buildPolicy(methodArn, EffectDeny, nil)
	}
	if u == nil || !KeyMatches(u, apiKey) {
		return buildPolicy(methodArn, EffectDeny, nil)
	}

	raw, err := json.Marshal(u)
	if err != nil {
		return buildPolicy(methodArn, EffectDeny, nil)
	}
	return buildPolicy(methodArn, EffectAllow, map[string]string{a.identityKey(): string(raw)})
}

// Identity decodes the caller stored in an Allow policy's context.
func (a *Authorizer) Identity(p Policy) (*domain.User, error) {
	if !p.Allowed() {
		return nil, ErrUnauthorized
	}
	raw, ok := p.Context[a.identityKey()]
	if !ok || raw == "" {
		return nil, ErrUnauthorized
	}
	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, ErrUnauthorized
	}
	return &u, nil
}

func (a *Authorizer) identityKey() string {
	if a.IdentityKey == "" {
		return DefaultIdentityKey
	}
	return a.IdentityKey
}

// ParseToken extracts the external id and api key from
// "Bearer base64(<id>:<apiKey>)".
func ParseToken(header string) (id, apiKey string, err error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "", errMalformedToken
	}
	token = strings.TrimSpace(token)
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		if decoded, err = base64.RawStdEncoding.DecodeString(token); err != nil {
			return "", "", errMalformedToken
		}
	}
	id, apiKey, ok = strings.Cut(string(decoded), ":")
	if !ok || id == "" {
		return "", "", errMalformedToken
	}
	return id, apiKey, nil
}

// EncodeToken builds the bearer credential for id and apiKey.
func EncodeToken(id, apiKey string) string {
	return "Bearer " + base64.StdEncoding.EncodeToString([]byte(id+":"+apiKey))
}

func buildPolicy(methodArn, effect string, ctx map[string]string) Policy {
	if ctx == nil {
		ctx = map[string]string{}
	}
	return Policy{
		PrincipalID: principalID,
		PolicyDocument: PolicyDocument{
			Version: policyVersion,
			Statement: []Statement{{
				Action:   policyAction,
				Effect:   effect,
				Resource: methodArn,
			}},
		},
		Context: ctx,
	}
}
