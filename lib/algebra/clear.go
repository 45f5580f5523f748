package libsurveyalgebra

import (
	"encoding/binary"
	"sync"

	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"

	"github.com/MerleBarney/encrypted-survey/lib"
)

// ClearEngine evaluates the algebra on plaintext integers. It backs registry
// unit tests and local dry runs where no curve arithmetic is wanted. Inputs are
// plain little-endian integers and proofs are ignored.
type ClearEngine struct {
	mu     sync.Mutex
	values map[libsurvey.Handle]int64
}

// NewClearEngine creates an empty plaintext engine.
func NewClearEngine() *ClearEngine {
	return &ClearEngine{values: make(map[libsurvey.Handle]int64)}
}

// ClearInput encodes value the way ClearEngine.VerifyCiphertext expects it.
func ClearInput(value int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(value))
	return b
}

// put mints a fresh handle for v. Callers must hold the lock.
func (e *ClearEngine) put(v int64) libsurvey.Handle {
	h := libsurvey.NewHandle()
	e.values[h] = v
	return h
}

// get resolves a handle. Callers must hold the lock.
func (e *ClearEngine) get(h libsurvey.Handle) (int64, error) {
	if h.IsZero() {
		return 0, xerrors.New("zero handle references no value")
	}
	v, ok := e.values[h]
	if !ok {
		return 0, xerrors.Errorf("unknown handle %v", h)
	}
	return v, nil
}

// VerifyCiphertext admits a little-endian encoded integer. The proof and sender
// are not checked.
func (e *ClearEngine) VerifyCiphertext(ct, proof []byte, sender kyber.Point, tag []byte) (libsurvey.Handle, error) {
	if len(ct) != 8 {
		return libsurvey.ZeroHandle, xerrors.Errorf("clear input is %d bytes, expected 8", len(ct))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.put(int64(binary.LittleEndian.Uint64(ct))), nil
}

// Encrypt admits a plaintext constant.
func (e *ClearEngine) Encrypt(value int64) (libsurvey.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.put(value), nil
}

// Eq compares the two values for equality.
func (e *ClearEngine) Eq(a, b libsurvey.Handle) (libsurvey.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	va, err := e.get(a)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	vb, err := e.get(b)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}

	if va == vb {
		return e.put(1), nil
	}
	return e.put(0), nil
}

// Gt compares the two values for strict order.
func (e *ClearEngine) Gt(a, b libsurvey.Handle) (libsurvey.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	va, err := e.get(a)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	vb, err := e.get(b)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}

	if va > vb {
		return e.put(1), nil
	}
	return e.put(0), nil
}

// And computes the bitwise and of the two values.
func (e *ClearEngine) And(a, b libsurvey.Handle) (libsurvey.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	va, err := e.get(a)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	vb, err := e.get(b)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	return e.put(va & vb), nil
}

// Select returns the chosen branch under a fresh handle.
func (e *ClearEngine) Select(cond, ifTrue, ifFalse libsurvey.Handle) (libsurvey.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bit, err := e.get(cond)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}

	chosen := ifFalse
	if bit != 0 {
		chosen = ifTrue
	}
	v, err := e.get(chosen)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	return e.put(v), nil
}

// Add sums the two values.
func (e *ClearEngine) Add(a, b libsurvey.Handle) (libsurvey.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	va, err := e.get(a)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	vb, err := e.get(b)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	return e.put(va + vb), nil
}

// Reveal returns the value behind h.
func (e *ClearEngine) Reveal(h libsurvey.Handle) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.get(h)
}
