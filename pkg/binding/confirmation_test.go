package binding

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-wspolicy/pkg/policy"
	"github.com/sirosfoundation/go-wspolicy/pkg/security"
)

func confirmationPolicy(version int) *policy.Policy {
	return asymmetricPolicy(signedBody, &policy.Wss{Version: version, RequireSignatureConfirmation: true})
}

func TestSignatureConfirmation(t *testing.T) {
	ep := testEndpoint(t, WithRequestor(false))

	t.Run("echoes request signatures", func(t *testing.T) {
		env := testEnvelope(t)
		ex := &Exchange{Inbound: []*HandlerResult{
			{Results: []*EngineResult{
				{Action: ActionSign, SignatureValue: []byte("first")},
				{Action: ActionTimestamp},
			}},
			{Actor: "urn:other", Results: []*EngineResult{
				{Action: ActionUTSign, SignatureValue: []byte("second")},
			}},
		}}

		res, err := NewHandler(ep, confirmationPolicy(11)).Secure(context.Background(), env, ex)
		require.NoError(t, err)
		assert.True(t, res.Ledger.Get(policy.QNameWss11)[0].IsAsserted())

		header := env.SecurityHeader()
		scs := header.SelectElements("SignatureConfirmation")
		require.Len(t, scs, 2)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("first")), scs[0].SelectAttrValue("Value", ""))
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("second")), scs[1].SelectAttrValue("Value", ""))

		uris := signedURIs(header.SelectElement("Signature"))
		for _, sc := range scs {
			assert.Contains(t, uris, "#"+security.ElementID(sc))
		}
	})

	t.Run("unsigned request", func(t *testing.T) {
		env := testEnvelope(t)
		_, err := NewHandler(ep, confirmationPolicy(11)).Secure(context.Background(), env, nil)
		require.NoError(t, err)

		scs := env.SecurityHeader().SelectElements("SignatureConfirmation")
		require.Len(t, scs, 1)
		assert.Nil(t, scs[0].SelectAttr("Value"))
	})

	t.Run("initiator never confirms", func(t *testing.T) {
		env := testEnvelope(t)
		_, err := NewHandler(testEndpoint(t), confirmationPolicy(11)).Secure(context.Background(), env, nil)
		require.NoError(t, err)
		assert.Empty(t, env.SecurityHeader().SelectElements("SignatureConfirmation"))
	})

	t.Run("wss10", func(t *testing.T) {
		env := testEnvelope(t)
		_, err := NewHandler(ep, confirmationPolicy(10)).Secure(context.Background(), env, nil)
		require.NoError(t, err)
		assert.Empty(t, env.SecurityHeader().SelectElements("SignatureConfirmation"))
	})
}
