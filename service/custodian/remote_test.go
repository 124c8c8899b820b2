package custodian

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signingService is a minimal stand-in for an HTTP signing service.
func signingService(t *testing.T, key *solanago.PrivateKey, signStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/session", func(w http.ResponseWriter, r *http.Request) {
		if key == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"address": key.PublicKey().String()})
	})
	mux.HandleFunc("POST /v1/sign", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if signStatus != http.StatusOK {
			w.WriteHeader(signStatus)
			json.NewEncoder(w).Encode(map[string]string{"error": "user rejected the request"})
			return
		}
		var req signPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		raw, err := base64.StdEncoding.DecodeString(req.Transaction)
		require.NoError(t, err)
		tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(raw))
		require.NoError(t, err)
		_, err = tx.PartialSign(func(pk solanago.PublicKey) *solanago.PrivateKey {
			if pk.Equals(key.PublicKey()) {
				return key
			}
			return nil
		})
		require.NoError(t, err)
		out, err := tx.MarshalBinary()
		require.NoError(t, err)
		json.NewEncoder(w).Encode(signPayload{Transaction: base64.StdEncoding.EncodeToString(out)})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteCustodian_SignsThroughGateway(t *testing.T) {
	key := solanago.NewWallet().PrivateKey
	srv := signingService(t, &key, http.StatusOK)

	rc := NewRemoteCustodian(srv.URL, srv.Client(), discardLogger())
	addr, ok := rc.ActiveAddress(context.Background())
	require.True(t, ok)
	assert.Equal(t, key.PublicKey(), addr)

	gw := NewGateway(rc, nil, discardLogger())
	signed, err := gw.Sign(context.Background(), transferTx(t, key.PublicKey()))
	require.NoError(t, err)
	assert.NoError(t, signed.Tx.VerifySignatures())
}

func TestRemoteCustodian_NoSession(t *testing.T) {
	srv := signingService(t, nil, http.StatusOK)

	rc := NewRemoteCustodian(srv.URL, nil, discardLogger())
	_, ok := rc.ActiveAddress(context.Background())
	assert.False(t, ok)
}

func TestRemoteCustodian_StatusMapping(t *testing.T) {
	key := solanago.NewWallet().PrivateKey

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, ErrSigningDenied},
		{http.StatusUnprocessableEntity, ErrSigningUnsupported},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := signingService(t, &key, tt.status)
			rc := NewRemoteCustodian(srv.URL, nil, discardLogger())

			_, err := rc.Sign(context.Background(), transferTx(t, key.PublicKey()).Tx)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "user rejected the request")
		})
	}
}

func TestRemoteCustodian_ServerErrorIsDeniedAtGateway(t *testing.T) {
	key := solanago.NewWallet().PrivateKey
	srv := signingService(t, &key, http.StatusInternalServerError)

	gw := NewGateway(NewRemoteCustodian(srv.URL, nil, discardLogger()), nil, discardLogger())
	_, err := gw.Sign(context.Background(), transferTx(t, key.PublicKey()))
	assert.ErrorIs(t, err, ErrSigningDenied)
}
