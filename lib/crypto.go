package libsurvey

import (
	"encoding"
	"encoding/base64"
	"sync"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// MaxHomomorphicInt is upper bound for integers used in messages, a failed decryption will return this value.
const MaxHomomorphicInt = int64(100000)

// PointToInt creates a map between EC points and integers.
var PointToInt = make(map[string]int64, 1000)
var currentGreatestM kyber.Point
var currentGreatestInt = int64(0)
var mutex = sync.Mutex{}

// Structs
//______________________________________________________________________________________________________________________

// CipherText is an ElGamal encrypted point.
type CipherText struct {
	K, C kyber.Point
}

// CipherVector is a slice of ElGamal encrypted points.
type CipherVector []CipherText

// Constructors
//______________________________________________________________________________________________________________________

// NewCipherText creates a ciphertext of null elements.
func NewCipherText() *CipherText {
	return &CipherText{K: SuiTe.Point().Null(), C: SuiTe.Point().Null()}
}

// NewCipherVector creates a ciphervector of null elements.
func NewCipherVector(length int) *CipherVector {
	cv := make(CipherVector, length)
	for i := 0; i < length; i++ {
		cv[i] = CipherText{SuiTe.Point().Null(), SuiTe.Point().Null()}
	}
	return &cv
}

// NullCipherVector encrypts a 0-filled vector under the given public key.
func NullCipherVector(length int, pubkey kyber.Point) *CipherVector {
	return EncryptIntVector(pubkey, make([]int64, length))
}

// Key Pairs
//______________________________________________________________________________________________________________________

// GenKey generates a random key pair usable for encrypting and decrypting integers.
func GenKey() (secKey kyber.Scalar, pubKey kyber.Point) {
	keys := key.NewKeyPair(SuiTe)
	return keys.Private, keys.Public
}

// Encryption
//______________________________________________________________________________________________________________________

// encryptPoint encrypts an elliptic curve point using ElGamal encryption.
func encryptPoint(pubkey kyber.Point, M kyber.Point) *CipherText {
	B := SuiTe.Point().Base()
	r := SuiTe.Scalar().Pick(random.New()) // ephemeral private key
	K := SuiTe.Point().Mul(r, B)           // ephemeral DH public key
	S := SuiTe.Point().Mul(r, pubkey)      // ephemeral DH shared secret
	C := S.Add(S, M)                       // message blinded with secret
	return &CipherText{K, C}
}

// IntToPoint maps an integer to a point in the elliptic curve.
func IntToPoint(integer int64) kyber.Point {
	B := SuiTe.Point().Base()
	i := SuiTe.Scalar().SetInt64(integer)
	return SuiTe.Point().Mul(i, B)
}

// EncryptInt encodes i as iB, encrypts it into a CipherText and returns a pointer to it.
func EncryptInt(pubkey kyber.Point, integer int64) *CipherText {
	return encryptPoint(pubkey, IntToPoint(integer))
}

// EncryptIntVector encrypts a []int into a CipherVector and returns a pointer to it.
func EncryptIntVector(pubkey kyber.Point, intArray []int64) *CipherVector {
	var wg sync.WaitGroup
	cv := make(CipherVector, len(intArray))
	if PARALLELIZE {
		for i := 0; i < len(intArray); i += VPARALLELIZE {
			wg.Add(1)
			go func(i int) {
				for j := 0; j < VPARALLELIZE && (j+i < len(intArray)); j++ {
					cv[j+i] = *EncryptInt(pubkey, intArray[j+i])
				}
				defer wg.Done()
			}(i)
		}
		wg.Wait()
	} else {
		for i, n := range intArray {
			cv[i] = *EncryptInt(pubkey, n)
		}
	}
	return &cv
}

// Decryption
//______________________________________________________________________________________________________________________

// DecryptPoint decrypts an elliptic point from an ElGamal cipher text.
func DecryptPoint(prikey kyber.Scalar, c CipherText) kyber.Point {
	S := SuiTe.Point().Mul(prikey, c.K) // regenerate shared secret
	return SuiTe.Point().Sub(c.C, S)    // use to un-blind the message
}

// DecryptInt decrypts an integer from an ElGamal cipher text where the integer is encoded in the exponent.
func DecryptInt(prikey kyber.Scalar, cipher CipherText) int64 {
	M := DecryptPoint(prikey, cipher)
	return discreteLog(M)
}

// DecryptIntVector decrypts a CipherVector.
func DecryptIntVector(prikey kyber.Scalar, cipherVector *CipherVector) []int64 {
	result := make([]int64, len(*cipherVector))
	for i, c := range *cipherVector {
		result[i] = DecryptInt(prikey, c)
	}
	return result
}

// discreteLog computes the discrete log of P in base B, walking the precomputed
// point table and extending it on demand.
func discreteLog(P kyber.Point) int64 {
	B := SuiTe.Point().Base()

	mutex.Lock()
	defer mutex.Unlock()

	if v, ok := PointToInt[P.String()]; ok {
		return v
	}

	if currentGreatestM == nil {
		currentGreatestM = SuiTe.Point().Null()
		PointToInt[currentGreatestM.String()] = 0
		if currentGreatestM.Equal(P) {
			return 0
		}
	}

	guess := currentGreatestM.Clone()
	for v := currentGreatestInt + 1; v <= MaxHomomorphicInt; v++ {
		guess = guess.Add(guess, B)
		PointToInt[guess.String()] = v
		currentGreatestM = guess
		currentGreatestInt = v
		if guess.Equal(P) {
			return v
		}
	}

	log.Error("out of bound encryption, bound is", MaxHomomorphicInt)
	return MaxHomomorphicInt
}

// Key Switching
//______________________________________________________________________________________________________________________

// KeySwitch derives a fresh encryption of the value inside c, moving it from the key
// pair of private to the target public key without passing through the plaintext integer.
func KeySwitch(private kyber.Scalar, target kyber.Point, c CipherText) CipherText {
	S := SuiTe.Point().Mul(private, c.K)
	M := SuiTe.Point().Sub(c.C, S)

	r := SuiTe.Scalar().Pick(random.New())
	K := SuiTe.Point().Mul(r, nil)
	S2 := SuiTe.Point().Mul(r, target)
	return CipherText{K: K, C: S2.Add(S2, M)}
}

// Homomorphic Operations
//______________________________________________________________________________________________________________________

// Add two ciphertexts and stores result in receiver.
func (c *CipherText) Add(c1, c2 CipherText) {
	c.C.Add(c1.C, c2.C)
	c.K.Add(c1.K, c2.K)
}

// Sub two ciphertexts and stores result in receiver.
func (c *CipherText) Sub(c1, c2 CipherText) {
	c.C.Sub(c1.C, c2.C)
	c.K.Sub(c1.K, c2.K)
}

// Add two ciphervectors and stores result in receiver.
func (cv *CipherVector) Add(cv1, cv2 CipherVector) {
	var wg sync.WaitGroup
	if PARALLELIZE {
		for i := 0; i < len(cv1); i += VPARALLELIZE {
			wg.Add(1)
			go func(i int) {
				for j := 0; j < VPARALLELIZE && (j+i < len(cv1)); j++ {
					(*cv)[i+j].Add(cv1[i+j], cv2[i+j])
				}
				defer wg.Done()
			}(i)
		}
		wg.Wait()
	} else {
		for i := range cv1 {
			(*cv)[i].Add(cv1[i], cv2[i])
		}
	}
}

// Conversion
//______________________________________________________________________________________________________________________

// ToBytes converts a CipherText to a byte array.
func (c *CipherText) ToBytes() ([]byte, error) {
	k, err := c.K.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("marshalling K point: %v", err)
	}
	cp, err := c.C.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("marshalling C point: %v", err)
	}
	return append(k, cp...), nil
}

// FromBytes converts a byte array to a CipherText. Note that you need to create the (empty) object beforehand.
func (c *CipherText) FromBytes(data []byte) error {
	pointLength := SuiTe.PointLen()
	if len(data) != 2*pointLength {
		return xerrors.Errorf("ciphertext is %d bytes, expected %d", len(data), 2*pointLength)
	}
	if err := c.K.UnmarshalBinary(data[:pointLength]); err != nil {
		return xerrors.Errorf("unmarshalling K point: %v", err)
	}
	if err := c.C.UnmarshalBinary(data[pointLength:]); err != nil {
		return xerrors.Errorf("unmarshalling C point: %v", err)
	}
	return nil
}

// Serialize converts a CipherText to its base64 representation.
func (c *CipherText) Serialize() (string, error) {
	b, err := c.ToBytes()
	if err != nil {
		return "", xerrors.Errorf("serializing ciphertext: %v", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Deserialize reads a CipherText from its base64 representation.
func (c *CipherText) Deserialize(b64Encoded string) error {
	decoded, err := base64.StdEncoding.DecodeString(b64Encoded)
	if err != nil {
		return xerrors.Errorf("decoding base64 ciphertext: %v", err)
	}
	return c.FromBytes(decoded)
}

// SerializeElement serializes a BinaryMarshaller-compatible element using
// base64 encoding (e.g. a kyber.Point or kyber.Scalar).
func SerializeElement(el encoding.BinaryMarshaler) (string, error) {
	b, err := el.MarshalBinary()
	if err != nil {
		return "", xerrors.Errorf("marshalling element: %v", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// SerializePoint serializes a point.
func SerializePoint(point kyber.Point) (string, error) {
	return SerializeElement(point)
}

// SerializeScalar serializes a scalar.
func SerializeScalar(scalar kyber.Scalar) (string, error) {
	return SerializeElement(scalar)
}

// DeserializePoint deserializes a point using base64 encoding.
func DeserializePoint(encodedPoint string) (kyber.Point, error) {
	decoded, err := base64.StdEncoding.DecodeString(encodedPoint)
	if err != nil {
		return nil, xerrors.Errorf("decoding base64 point: %v", err)
	}
	point := SuiTe.Point()
	if err := point.UnmarshalBinary(decoded); err != nil {
		return nil, xerrors.Errorf("unmarshalling point: %v", err)
	}
	return point, nil
}

// DeserializeScalar deserializes a scalar using base64 encoding.
func DeserializeScalar(encodedScalar string) (kyber.Scalar, error) {
	decoded, err := base64.StdEncoding.DecodeString(encodedScalar)
	if err != nil {
		return nil, xerrors.Errorf("decoding base64 scalar: %v", err)
	}
	scalar := SuiTe.Scalar()
	if err := scalar.UnmarshalBinary(decoded); err != nil {
		return nil, xerrors.Errorf("unmarshalling scalar: %v", err)
	}
	return scalar, nil
}
