package libsurveyalgebra_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"

	"github.com/MerleBarney/encrypted-survey/lib"
	"github.com/MerleBarney/encrypted-survey/lib/algebra"
)

func newTestEngine(t *testing.T) *libsurveyalgebra.Engine {
	private, _ := libsurvey.GenKey()
	return libsurveyalgebra.NewEngine(private)
}

// signedInput encrypts value under the engine key and signs it with the sender
// key over the given tag, the way a respondent does.
func signedInput(t *testing.T, e *libsurveyalgebra.Engine, sender *key.Pair, tag []byte, value int64) ([]byte, []byte) {
	ctb, err := libsurvey.EncryptInt(e.Public(), value).ToBytes()
	require.NoError(t, err)

	msg := append(append([]byte{}, tag...), ctb...)
	proof, err := schnorr.Sign(libsurvey.SuiTe, sender.Private, msg)
	require.NoError(t, err)

	return ctb, proof
}

// TestVerifyCiphertext checks that only correctly signed ciphertexts are admitted.
func TestVerifyCiphertext(t *testing.T) {
	e := newTestEngine(t)
	sender := key.NewKeyPair(libsurvey.SuiTe)
	tag := libsurvey.AnswerTag(3, 1)

	ctb, proof := signedInput(t, e, sender, tag, 11)

	h, err := e.VerifyCiphertext(ctb, proof, sender.Public, tag)
	require.NoError(t, err)
	v, err := e.Reveal(h)
	require.NoError(t, err)
	assert.Equal(t, int64(11), v)

	// proof over a different tag must not verify
	_, err = e.VerifyCiphertext(ctb, proof, sender.Public, libsurvey.AnswerTag(3, 2))
	assert.Error(t, err)

	// proof from a different key must not verify
	other := key.NewKeyPair(libsurvey.SuiTe)
	_, err = e.VerifyCiphertext(ctb, proof, other.Public, tag)
	assert.Error(t, err)

	// malformed ciphertext bytes must be rejected before any signature check
	_, err = e.VerifyCiphertext([]byte{1, 2, 3}, proof, sender.Public, tag)
	assert.Error(t, err)
}

// TestEngineOperations checks the semantics of every operation through Reveal.
func TestEngineOperations(t *testing.T) {
	e := newTestEngine(t)

	three, err := e.Encrypt(3)
	require.NoError(t, err)
	five, err := e.Encrypt(5)
	require.NoError(t, err)
	threeBis, err := e.Encrypt(3)
	require.NoError(t, err)

	eq, err := e.Eq(three, threeBis)
	require.NoError(t, err)
	v, err := e.Reveal(eq)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	neq, err := e.Eq(three, five)
	require.NoError(t, err)
	v, err = e.Reveal(neq)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	gt, err := e.Gt(five, three)
	require.NoError(t, err)
	v, err = e.Reveal(gt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	ngt, err := e.Gt(three, five)
	require.NoError(t, err)
	v, err = e.Reveal(ngt)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	and, err := e.And(three, five)
	require.NoError(t, err)
	v, err = e.Reveal(and)
	require.NoError(t, err)
	assert.Equal(t, int64(3&5), v)

	sum, err := e.Add(three, five)
	require.NoError(t, err)
	v, err = e.Reveal(sum)
	require.NoError(t, err)
	assert.Equal(t, int64(8), v)
}

// TestEngineSelect checks both branches and that the result is a fresh handle.
func TestEngineSelect(t *testing.T) {
	e := newTestEngine(t)

	one, err := e.Encrypt(1)
	require.NoError(t, err)
	zero, err := e.Encrypt(0)
	require.NoError(t, err)
	yes, err := e.Encrypt(77)
	require.NoError(t, err)
	no, err := e.Encrypt(88)
	require.NoError(t, err)

	picked, err := e.Select(one, yes, no)
	require.NoError(t, err)
	v, err := e.Reveal(picked)
	require.NoError(t, err)
	assert.Equal(t, int64(77), v)
	assert.NotEqual(t, yes, picked)
	assert.NotEqual(t, no, picked)

	picked, err = e.Select(zero, yes, no)
	require.NoError(t, err)
	v, err = e.Reveal(picked)
	require.NoError(t, err)
	assert.Equal(t, int64(88), v)
}

// TestEngineFreshHandles checks that operations never reuse handles.
func TestEngineFreshHandles(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.Encrypt(1)
	require.NoError(t, err)
	b, err := e.Encrypt(2)
	require.NoError(t, err)

	s1, err := e.Add(a, b)
	require.NoError(t, err)
	s2, err := e.Add(a, b)
	require.NoError(t, err)

	assert.NotEqual(t, s1, s2)
	assert.NotEqual(t, a, s1)
	assert.NotEqual(t, b, s1)
}

// TestEngineUnknownHandle checks that unbound handles are refused everywhere.
func TestEngineUnknownHandle(t *testing.T) {
	e := newTestEngine(t)

	bound, err := e.Encrypt(1)
	require.NoError(t, err)
	unbound := libsurvey.NewHandle()

	_, err = e.Add(bound, unbound)
	assert.Error(t, err)
	_, err = e.Eq(unbound, bound)
	assert.Error(t, err)
	_, err = e.Reveal(libsurvey.ZeroHandle)
	assert.Error(t, err)
	_, err = e.Switch(unbound, e.Public())
	assert.Error(t, err)
}

// TestEngineSwitch checks that a switched ciphertext decrypts under the target key.
func TestEngineSwitch(t *testing.T) {
	e := newTestEngine(t)
	client := key.NewKeyPair(libsurvey.SuiTe)

	h, err := e.Encrypt(42)
	require.NoError(t, err)

	ct, err := e.Switch(h, client.Public)
	require.NoError(t, err)

	assert.Equal(t, int64(42), libsurvey.DecryptInt(client.Private, *ct))
}
