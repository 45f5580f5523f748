// Package libsurveyalgebra defines the operation set the survey registry uses to
// compute on encrypted answers. Values never leave the engine, callers only hold
// opaque handles, and every operation mints a fresh handle so access grants on an
// input never leak to a result.
package libsurveyalgebra

import (
	"go.dedis.ch/kyber/v3"

	"github.com/MerleBarney/encrypted-survey/lib"
)

// Algebra is the encrypted operation set of the aggregation engine.
type Algebra interface {
	// VerifyCiphertext admits an externally produced ciphertext. The proof must
	// bind ct to the sender key and the given domain separation tag.
	VerifyCiphertext(ct, proof []byte, sender kyber.Point, tag []byte) (libsurvey.Handle, error)
	// Encrypt admits a plaintext constant chosen by the engine's caller.
	Encrypt(value int64) (libsurvey.Handle, error)
	// Eq yields an encrypted 1 if both handles hold the same value, 0 otherwise.
	Eq(a, b libsurvey.Handle) (libsurvey.Handle, error)
	// Gt yields an encrypted 1 if a holds a strictly greater value than b.
	Gt(a, b libsurvey.Handle) (libsurvey.Handle, error)
	// And yields the bitwise and of the two values.
	And(a, b libsurvey.Handle) (libsurvey.Handle, error)
	// Select yields the value of ifTrue when cond holds a non-zero value and the
	// value of ifFalse otherwise, without revealing which branch was taken.
	Select(cond, ifTrue, ifFalse libsurvey.Handle) (libsurvey.Handle, error)
	// Add yields the sum of the two values.
	Add(a, b libsurvey.Handle) (libsurvey.Handle, error)
}

// Revealer decrypts a handle to its plaintext integer. Only the service owning
// the engine uses it, when building cleartext result exports.
type Revealer interface {
	Reveal(h libsurvey.Handle) (int64, error)
}

// KeySwitcher re-encrypts the value behind a handle under a requester's public
// key, so the requester can decrypt locally without the engine key ever leaving
// the engine.
type KeySwitcher interface {
	Switch(h libsurvey.Handle, target kyber.Point) (*libsurvey.CipherText, error)
}
