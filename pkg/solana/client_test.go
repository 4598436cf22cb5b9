package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"

	"github.com/solfarm/multisig-cli/pkg/retry"
)

func TestSignatureStatus(t *testing.T) {
	zero, one := 0, 1

	for _, tc := range []struct {
		s         SignatureStatus
		confirmed bool
		finalized bool
	}{
		{s: SignatureStatus{Confirmations: &zero}},
		{s: SignatureStatus{Confirmations: &zero, ConfirmationStatus: "random"}},
		{s: SignatureStatus{Confirmations: &zero, ConfirmationStatus: confirmationStatusProcessed}},
		{s: SignatureStatus{Confirmations: &one}, confirmed: true},
		{s: SignatureStatus{Confirmations: &zero, ConfirmationStatus: confirmationStatusConfirmed}, confirmed: true},
		{s: SignatureStatus{Confirmations: &zero, ConfirmationStatus: confirmationStatusFinalized}, confirmed: true, finalized: true},
		{s: SignatureStatus{}, confirmed: true, finalized: true},
	} {
		assert.Equal(t, tc.confirmed, tc.s.Confirmed())
		assert.Equal(t, tc.finalized, tc.s.Finalized())
		assert.True(t, tc.s.Reached(CommitmentProcessed))
		assert.Equal(t, tc.confirmed, tc.s.Reached(CommitmentConfirmed))
		assert.Equal(t, tc.finalized, tc.s.Reached(CommitmentFinalized))
	}
}

func TestParseCommitment(t *testing.T) {
	for name, expected := range map[string]Commitment{
		"":          CommitmentConfirmed,
		"processed": CommitmentProcessed,
		"confirmed": CommitmentConfirmed,
		"finalized": CommitmentFinalized,
	} {
		actual, err := ParseCommitment(name)
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	}

	_, err := ParseCommitment("max")
	assert.Error(t, err)
}

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     int               `json:"id"`
}

// rpcServer answers each method with the canned result or error registered
// for it.
func rpcServer(t *testing.T, results map[string]interface{}, rpcErrors map[string]*jsonrpc.RPCError) (*httptest.Server, *[]rpcRequest) {
	var seen []rpcRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req)

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if e, ok := rpcErrors[req.Method]; ok {
			resp["error"] = e
		} else {
			resp["result"] = results[req.Method]
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)

	return srv, &seen
}

func newTestClient(endpoint string) *client {
	return &client{
		log:     logrus.StandardLogger().WithField("type", "solana/client"),
		client:  jsonrpc.NewClient(endpoint),
		retrier: retry.NewRetrier(retry.Limit(1)),
	}
}

func TestClient_GetLatestBlockhash(t *testing.T) {
	var expected Blockhash
	for i := range expected {
		expected[i] = byte(i)
	}

	srv, seen := rpcServer(t, map[string]interface{}{
		"getLatestBlockhash": map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value":   map[string]interface{}{"blockhash": base58.Encode(expected[:]), "lastValidBlockHeight": 100},
		},
	}, nil)

	actual, err := newTestClient(srv.URL).GetLatestBlockhash(CommitmentFinalized)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)

	require.Len(t, *seen, 1)
	assert.JSONEq(t, `{"commitment":"finalized"}`, string((*seen)[0].Params[0]))
}

func TestClient_GetAccountInfo(t *testing.T) {
	owner, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	account, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	srv, _ := rpcServer(t, map[string]interface{}{
		"getAccountInfo": map[string]interface{}{
			"value": map[string]interface{}{
				"lamports":   42,
				"owner":      base58.Encode(owner),
				"data":       []string{base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), "base64"},
				"executable": false,
			},
		},
	}, nil)

	info, err := newTestClient(srv.URL).GetAccountInfo(account, CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, owner, info.Owner)
	assert.Equal(t, []byte{1, 2, 3}, info.Data)
	assert.EqualValues(t, 42, info.Lamports)

	missing, _ := rpcServer(t, map[string]interface{}{
		"getAccountInfo": map[string]interface{}{"value": nil},
	}, nil)
	_, err = newTestClient(missing.URL).GetAccountInfo(account, CommitmentConfirmed)
	assert.Equal(t, ErrNoAccountInfo, err)
}

func TestClient_SubmitTransaction_PreflightFailure(t *testing.T) {
	keys := generateKeys(t, 2)
	tx := NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), []byte{1}))
	require.NoError(t, tx.Sign(keys[0]))

	srv, seen := rpcServer(t, nil, map[string]*jsonrpc.RPCError{
		"sendTransaction": {
			Code:    sendTransactionPreflightFailureCode,
			Message: "Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.",
			Data: map[string]interface{}{
				"err": map[string]interface{}{
					"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 1}},
				},
			},
		},
	})

	sig, err := newTestClient(srv.URL).SubmitTransaction(tx, CommitmentConfirmed)
	assert.Equal(t, tx.Signature(), sig)

	var txErr *TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.False(t, txErr.IsInsufficientFunds())
	assert.True(t, txErr.IsInsufficientFundsIn(tx.Message, public(keys[1])))

	require.Len(t, *seen, 1)
	var config map[string]interface{}
	require.NoError(t, json.Unmarshal((*seen)[0].Params[1], &config))
	assert.Equal(t, false, config["skipPreflight"])
}

func TestClient_SubmitTransaction_Success(t *testing.T) {
	keys := generateKeys(t, 2)
	tx := NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), []byte{1}))
	require.NoError(t, tx.Sign(keys[0]))

	sig := tx.Signature()
	srv, seen := rpcServer(t, map[string]interface{}{
		"sendTransaction": base58.Encode(sig[:]),
	}, nil)

	actual, err := newTestClient(srv.URL).SubmitTransaction(tx, CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, sig, actual)

	var encoded string
	require.NoError(t, json.Unmarshal((*seen)[0].Params[0], &encoded))
	decoded, err := base58.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, tx.Marshal(), decoded)
}

func TestClient_GetSignatureStatuses(t *testing.T) {
	srv, _ := rpcServer(t, map[string]interface{}{
		"getSignatureStatuses": map[string]interface{}{
			"context": map[string]interface{}{"slot": 5},
			"value": []interface{}{
				map[string]interface{}{"slot": 4, "confirmations": nil, "confirmationStatus": "finalized", "err": nil},
				nil,
				map[string]interface{}{"slot": 4, "confirmations": 1, "confirmationStatus": "confirmed", "err": "AccountInUse"},
			},
		},
	}, nil)

	statuses, err := newTestClient(srv.URL).GetSignatureStatuses(make([]Signature, 3))
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	require.NotNil(t, statuses[0])
	assert.True(t, statuses[0].Finalized())
	assert.Nil(t, statuses[0].ErrorResult)

	assert.Nil(t, statuses[1])

	require.NotNil(t, statuses[2])
	require.NotNil(t, statuses[2].ErrorResult)
	assert.Equal(t, TransactionErrorAccountInUse, statuses[2].ErrorResult.ErrorKey())
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	_, err := newTestClient(endpoint).GetLatestBlockhash(CommitmentConfirmed)
	assert.True(t, errors.Is(err, ErrEndpointUnreachable))

	keys := generateKeys(t, 2)
	tx := NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), nil))
	_, err = newTestClient(endpoint).SubmitTransaction(tx, CommitmentConfirmed)
	assert.True(t, errors.Is(err, ErrEndpointUnreachable))
}
