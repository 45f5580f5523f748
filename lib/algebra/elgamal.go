package libsurveyalgebra

import (
	"sync"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"golang.org/x/xerrors"

	"github.com/MerleBarney/encrypted-survey/lib"
)

// Engine evaluates the algebra over ElGamal ciphertexts under its own key pair.
// Addition is homomorphic; comparisons decrypt, compare and re-encrypt inside
// the engine, so their results stay ciphertexts and their inputs are never
// exposed to callers. The engine is the trusted evaluator of a deployment and
// its private key never leaves it.
type Engine struct {
	mu      sync.Mutex
	private kyber.Scalar
	public  kyber.Point
	book    map[libsurvey.Handle]libsurvey.CipherText
}

// NewEngine creates an engine around the given private key.
func NewEngine(private kyber.Scalar) *Engine {
	return &Engine{
		private: private,
		public:  libsurvey.SuiTe.Point().Mul(private, nil),
		book:    make(map[libsurvey.Handle]libsurvey.CipherText),
	}
}

// Public returns the engine's encryption key. Respondents encrypt answers
// against it.
func (e *Engine) Public() kyber.Point {
	return e.public
}

// bind mints a fresh handle for ct. Callers must hold the lock.
func (e *Engine) bind(ct libsurvey.CipherText) libsurvey.Handle {
	h := libsurvey.NewHandle()
	e.book[h] = ct
	return h
}

// lookup resolves a handle to its ciphertext. Callers must hold the lock.
func (e *Engine) lookup(h libsurvey.Handle) (libsurvey.CipherText, error) {
	if h.IsZero() {
		return libsurvey.CipherText{}, xerrors.New("zero handle references no ciphertext")
	}
	ct, ok := e.book[h]
	if !ok {
		return libsurvey.CipherText{}, xerrors.Errorf("unknown handle %v", h)
	}
	return ct, nil
}

// reveal decrypts the value behind a handle. Callers must hold the lock.
func (e *Engine) reveal(h libsurvey.Handle) (int64, error) {
	ct, err := e.lookup(h)
	if err != nil {
		return 0, err
	}
	v := libsurvey.DecryptInt(e.private, ct)
	if v >= libsurvey.MaxHomomorphicInt {
		return 0, xerrors.Errorf("handle %v decrypts outside the homomorphic range", h)
	}
	return v, nil
}

// VerifyCiphertext checks the signature binding ct to the sender key and the
// domain separation tag, then admits the ciphertext.
func (e *Engine) VerifyCiphertext(ct, proof []byte, sender kyber.Point, tag []byte) (libsurvey.Handle, error) {
	c := libsurvey.NewCipherText()
	if err := c.FromBytes(ct); err != nil {
		return libsurvey.ZeroHandle, xerrors.Errorf("decoding ciphertext: %v", err)
	}

	msg := make([]byte, 0, len(tag)+len(ct))
	msg = append(msg, tag...)
	msg = append(msg, ct...)
	if err := schnorr.Verify(libsurvey.SuiTe, sender, msg, proof); err != nil {
		return libsurvey.ZeroHandle, xerrors.Errorf("verifying ciphertext proof: %v", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bind(*c), nil
}

// Encrypt admits a plaintext constant.
func (e *Engine) Encrypt(value int64) (libsurvey.Handle, error) {
	ct := libsurvey.EncryptInt(e.public, value)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bind(*ct), nil
}

// Eq compares the two values for equality.
func (e *Engine) Eq(a, b libsurvey.Handle) (libsurvey.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	va, err := e.reveal(a)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	vb, err := e.reveal(b)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}

	bit := int64(0)
	if va == vb {
		bit = 1
	}
	return e.bind(*libsurvey.EncryptInt(e.public, bit)), nil
}

// Gt compares the two values for strict order.
func (e *Engine) Gt(a, b libsurvey.Handle) (libsurvey.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	va, err := e.reveal(a)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	vb, err := e.reveal(b)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}

	bit := int64(0)
	if va > vb {
		bit = 1
	}
	return e.bind(*libsurvey.EncryptInt(e.public, bit)), nil
}

// And computes the bitwise and of the two values.
func (e *Engine) And(a, b libsurvey.Handle) (libsurvey.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	va, err := e.reveal(a)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	vb, err := e.reveal(b)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	return e.bind(*libsurvey.EncryptInt(e.public, va&vb)), nil
}

// Select returns the chosen branch re-randomized, so the result cannot be
// linked to either input. Only the condition bit is revealed inside the engine.
func (e *Engine) Select(cond, ifTrue, ifFalse libsurvey.Handle) (libsurvey.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bit, err := e.reveal(cond)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}

	chosen := ifFalse
	if bit != 0 {
		chosen = ifTrue
	}
	ct, err := e.lookup(chosen)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}

	res := libsurvey.NewCipherText()
	res.Add(ct, *libsurvey.EncryptInt(e.public, 0))
	return e.bind(*res), nil
}

// Add sums the two values homomorphically, without any decryption.
func (e *Engine) Add(a, b libsurvey.Handle) (libsurvey.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ca, err := e.lookup(a)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	cb, err := e.lookup(b)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}

	res := libsurvey.NewCipherText()
	res.Add(ca, cb)
	return e.bind(*res), nil
}

// Reveal decrypts the value behind h.
func (e *Engine) Reveal(h libsurvey.Handle) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reveal(h)
}

// Switch re-encrypts the value behind h under the target public key. The value
// is never decrypted to an integer on the way.
func (e *Engine) Switch(h libsurvey.Handle, target kyber.Point) (*libsurvey.CipherText, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ct, err := e.lookup(h)
	if err != nil {
		return nil, err
	}
	switched := libsurvey.KeySwitch(e.private, target, ct)
	return &switched, nil
}
