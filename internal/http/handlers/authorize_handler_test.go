package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jotacemarin/botnorrea-v2/internal/auth"
	"github.com/jotacemarin/botnorrea-v2/internal/domain"
)

func TestAuthorizeEndpoint(t *testing.T) {
	a := newAPI(t)
	u := a.seed(t, "20", "my-key", domain.RoleUser)
	const arn = "GET /api/v1/users/:id"

	w := a.do(t, http.MethodPost, "/authorize", nil, AuthorizeRequest{
		AuthorizationToken: auth.EncodeToken("20", "my-key"),
		MethodArn:          arn,
	})
	expectStatus(t, w, http.StatusOK)
	p := decodeBody[auth.Policy](t, w)
	if !p.Allowed() || p.PolicyDocument.Statement[0].Resource != arn {
		t.Fatalf("expected Allow for %s, got %+v", arn, p)
	}
	var caller domain.User
	if err := json.Unmarshal([]byte(p.Context[auth.DefaultIdentityKey]), &caller); err != nil || caller.UUID != u.UUID {
		t.Fatalf("context caller = %+v (%v)", caller, err)
	}

	w = a.do(t, http.MethodPost, "/authorize", nil, AuthorizeRequest{
		AuthorizationToken: auth.EncodeToken("20", "wrong"),
		MethodArn:          arn,
	})
	expectStatus(t, w, http.StatusOK)
	if p := decodeBody[auth.Policy](t, w); p.Allowed() || len(p.Context) != 0 {
		t.Fatalf("expected Deny with empty context, got %+v", p)
	}

	expectStatus(t, a.do(t, http.MethodPost, "/authorize", nil, "{"), http.StatusBadRequest)
}
