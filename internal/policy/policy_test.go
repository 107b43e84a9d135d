package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"key-manager-service/internal/domain"
)

const (
	inferenceID = "ff09bc8a-a4e1-4f6c-9a2a-5a1b3c2e7d10"
	updateID    = "00000073-6563-7572-655f-757064617465"
)

func trusted(id string) domain.Session {
	return domain.Session{Login: domain.LoginTrustedApp, Identity: uuid.MustParse(id)}
}

func TestAuthorize(t *testing.T) {
	engine := NewEngine(inferenceID, updateID)
	other := uuid.NewString()

	tests := []struct {
		name    string
		session domain.Session
		policy  domain.Policy
		wantErr error
	}{
		{"A on A-only", trusted(inferenceID), domain.PolicyPrincipalAOnly, nil},
		{"B on A-only", trusted(updateID), domain.PolicyPrincipalAOnly, domain.ErrAccessDenied},
		{"A on A-or-B", trusted(inferenceID), domain.PolicyPrincipalAOrB, nil},
		{"B on A-or-B", trusted(updateID), domain.PolicyPrincipalAOrB, nil},
		{"other on A-or-B", trusted(other), domain.PolicyPrincipalAOrB, domain.ErrAccessDenied},
		{
			"A with user login",
			domain.Session{Login: domain.LoginUser, Identity: uuid.MustParse(inferenceID)},
			domain.PolicyPrincipalAOnly,
			domain.ErrAccessDenied,
		},
		{
			"public login",
			domain.Session{Login: domain.LoginPublic},
			domain.PolicyPrincipalAOrB,
			domain.ErrAccessDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.Authorize(tt.session, tt.policy)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthorize_ReferenceWithWhitespace(t *testing.T) {
	engine := NewEngine("  "+inferenceID+"\n", updateID)
	require.NoError(t, engine.Authorize(trusted(inferenceID), domain.PolicyPrincipalAOnly))
}

func TestAuthorize_UppercaseReference(t *testing.T) {
	engine := NewEngine("FF09BC8A-A4E1-4F6C-9A2A-5A1B3C2E7D10", updateID)
	require.NoError(t, engine.Authorize(trusted(inferenceID), domain.PolicyPrincipalAOnly))
}

func TestAuthorize_MalformedReference(t *testing.T) {
	engine := NewEngine("not-a-uuid", updateID)
	err := engine.Authorize(trusted(inferenceID), domain.PolicyPrincipalAOnly)
	require.ErrorIs(t, err, domain.ErrBadParameters)

	engine = NewEngine(inferenceID, "broken")
	require.NoError(t, engine.Authorize(trusted(inferenceID), domain.PolicyPrincipalAOnly))
	err = engine.Authorize(trusted(inferenceID), domain.PolicyPrincipalAOrB)
	require.ErrorIs(t, err, domain.ErrBadParameters)
}

func TestAuthorize_UnknownPolicy(t *testing.T) {
	engine := NewEngine(inferenceID, updateID)
	err := engine.Authorize(trusted(inferenceID), domain.Policy(99))
	require.ErrorIs(t, err, domain.ErrBadParameters)
}
