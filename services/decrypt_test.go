package servicessurvey

import (
	"testing"
	"time"

	"github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"

	"github.com/MerleBarney/encrypted-survey/lib"
)

func signedDecryptRequest(t *testing.T, keys *key.Pair, handles [][]byte, notBefore, notAfter int64) *UserDecryptRequest {
	req := &UserDecryptRequest{
		Handles:   handles,
		RequestID: uuid.NewV4().Bytes(),
		NotBefore: notBefore,
		NotAfter:  notAfter,
		Public:    keys.Public,
	}
	sig, err := schnorr.Sign(libsurvey.SuiTe, keys.Private, req.digest())
	require.NoError(t, err)
	req.Signature = sig
	return req
}

// TestUserDecryptChecks exercises the gatekeeping of the decryption handler,
// validity window, signature, request identifier and grants.
func TestUserDecryptChecks(t *testing.T) {
	local := onet.NewLocalTest(libsurvey.SuiTe)
	servers, _, _ := local.GenTree(3, true)
	defer local.CloseAll()

	service := local.GetServices(servers, serviceID)[0].(*Service)
	keys := key.NewKeyPair(libsurvey.SuiTe)
	now := time.Now().Unix()

	// an expired window is refused
	req := signedDecryptRequest(t, keys, nil, now-600, now-300)
	_, err := service.HandleUserDecrypt(req)
	assert.Error(t, err)

	// a window that has not opened yet is refused
	req = signedDecryptRequest(t, keys, nil, now+300, now+600)
	_, err = service.HandleUserDecrypt(req)
	assert.Error(t, err)

	// a tampered signature is refused
	req = signedDecryptRequest(t, keys, nil, now-60, now+60)
	req.NotAfter++
	_, err = service.HandleUserDecrypt(req)
	assert.Error(t, err)

	// the request identifier is mandatory
	req = signedDecryptRequest(t, keys, nil, now-60, now+60)
	req.RequestID = nil
	_, err = service.HandleUserDecrypt(req)
	assert.Error(t, err)

	// zero handles stand for untouched counters and decrypt to zero
	req = signedDecryptRequest(t, keys, [][]byte{libsurvey.ZeroHandle.Slice()}, now-60, now+60)
	reply, err := service.HandleUserDecrypt(req)
	require.NoError(t, err)
	require.Equal(t, 1, len(reply.Values))
	assert.Equal(t, int64(0), libsurvey.DecryptInt(keys.Private, reply.Values[0]))

	// a handle without a grant is refused
	req = signedDecryptRequest(t, keys, [][]byte{libsurvey.NewHandle().Slice()}, now-60, now+60)
	_, err = service.HandleUserDecrypt(req)
	assert.Error(t, err)

	// malformed handles are refused
	req = signedDecryptRequest(t, keys, [][]byte{{1, 2, 3}}, now-60, now+60)
	_, err = service.HandleUserDecrypt(req)
	assert.Error(t, err)
}
