package stripe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/boutique-checkout/pkg/config"
)

func TestNewClientValidatesKeys(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{Secret: "whsec", PublicKey: "pk_test"}, nil)
	require.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1", PublicKey: "pk_test"}, nil)
	require.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec"}, nil)
	require.ErrorIs(t, err, errPublicKeyMissing)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_live_1", Secret: "whsec", PublicKey: "pk"}, nil)
	require.Error(t, err)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec", PublicKey: "pk", Env: "staging"}, nil)
	require.ErrorIs(t, err, errInvalidStripeEnv)
}

func TestNewClientExposesSettings(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey:    "sk_test_1",
		Secret:    " whsec_1 ",
		PublicKey: "pk_test_1",
		Currency:  "EUR",
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "test", client.Environment())
	require.Equal(t, "whsec_1", client.SigningSecret())
	require.Equal(t, "pk_test_1", client.PublicKey())
	require.Equal(t, "eur", client.Currency())
}

func TestNilClientAccessors(t *testing.T) {
	var client *Client
	require.Empty(t, client.SigningSecret())
	require.Empty(t, client.PublicKey())
	require.Equal(t, "usd", client.Currency())
}
