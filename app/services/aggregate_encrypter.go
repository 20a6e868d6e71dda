package services

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/amirphl/measurement-reporting/models"
	"github.com/cloudflare/circl/hpke"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/curve25519"
)

// Prefix of the HPKE info string; the report's shared info JSON is appended
const AggregationServiceInfoPrefix = "aggregation_service"

const (
	histogramOperation = "histogram"
	bucketSize         = 16
	valueSize          = 4
)

// HPKE base mode suite: DHKEM(X25519, HKDF-SHA256), HKDF-SHA256, ChaCha20-Poly1305
const aggregationSuiteKEM = hpke.KEM_X25519_HKDF_SHA256

var aggregationSuite = hpke.NewSuite(aggregationSuiteKEM, hpke.KDF_HKDF_SHA256, hpke.AEAD_ChaCha20Poly1305)

var ErrInvalidPublicKey = errors.New("invalid aggregation public key")

// AggregateEncrypter produces the aggregation service payloads of an aggregate report
type AggregateEncrypter interface {
	// Encrypt seals the CBOR histogram for the given base64 X25519 public key and returns
	// base64(enc || ciphertext)
	Encrypt(publicKeyBase64 string, contributions []models.AggregateHistogramContribution, sharedInfo string) (string, error)
	// EncodeDebugPayload returns the base64 CBOR histogram in the clear
	EncodeDebugPayload(contributions []models.AggregateHistogramContribution) (string, error)
}

// AggregateEncrypterImpl implements AggregateEncrypter
type AggregateEncrypterImpl struct {
	rand   io.Reader
	encode cbor.EncMode
}

// NewAggregateEncrypter creates an encrypter using crypto/rand for ephemeral keys
func NewAggregateEncrypter() AggregateEncrypter {
	encode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("invalid cbor options: %v", err))
	}
	return &AggregateEncrypterImpl{rand: rand.Reader, encode: encode}
}

type cborHistogramPayload struct {
	Operation string                      `cbor:"operation"`
	Data      []cborHistogramContribution `cbor:"data"`
}

type cborHistogramContribution struct {
	Bucket []byte `cbor:"bucket"`
	Value  []byte `cbor:"value"`
}

func (e *AggregateEncrypterImpl) Encrypt(publicKeyBase64 string, contributions []models.AggregateHistogramContribution, sharedInfo string) (string, error) {
	publicKey, err := base64.StdEncoding.DecodeString(publicKeyBase64)
	if err != nil || len(publicKey) != curve25519.PointSize {
		return "", ErrInvalidPublicKey
	}
	plaintext, err := e.encodeHistogram(contributions)
	if err != nil {
		return "", err
	}
	sealed, err := sealHPKE(e.rand, publicKey, plaintext, []byte(AggregationServiceInfoPrefix+sharedInfo))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *AggregateEncrypterImpl) EncodeDebugPayload(contributions []models.AggregateHistogramContribution) (string, error) {
	plaintext, err := e.encodeHistogram(contributions)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(plaintext), nil
}

// encodeHistogram encodes buckets as 16-byte and values as 4-byte big-endian byte strings
func (e *AggregateEncrypterImpl) encodeHistogram(contributions []models.AggregateHistogramContribution) ([]byte, error) {
	payload := cborHistogramPayload{
		Operation: histogramOperation,
		Data:      make([]cborHistogramContribution, 0, len(contributions)),
	}
	for _, contribution := range contributions {
		bucket := make([]byte, bucketSize)
		if contribution.Key != nil {
			if contribution.Key.Sign() < 0 || contribution.Key.BitLen() > bucketSize*8 {
				return nil, fmt.Errorf("histogram bucket %s out of range", contribution.Key)
			}
			contribution.Key.FillBytes(bucket)
		}
		value := make([]byte, valueSize)
		binary.BigEndian.PutUint32(value, contribution.Value)
		payload.Data = append(payload.Data, cborHistogramContribution{Bucket: bucket, Value: value})
	}
	encoded, err := e.encode.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode histogram: %w", err)
	}
	return encoded, nil
}

// sealHPKE encrypts plaintext to the recipient in HPKE base mode and returns enc || ciphertext
func sealHPKE(random io.Reader, recipientPublicKey, plaintext, info []byte) ([]byte, error) {
	// low-order points give an all-zero X25519 output, which X25519 reports as an error
	if _, err := curve25519.X25519(curve25519.Basepoint, recipientPublicKey); err != nil {
		return nil, ErrInvalidPublicKey
	}
	publicKey, err := aggregationSuiteKEM.Scheme().UnmarshalBinaryPublicKey(recipientPublicKey)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	sender, err := aggregationSuite.NewSender(publicKey, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create hpke sender: %w", err)
	}
	enc, sealer, err := sender.Setup(random)
	if err != nil {
		return nil, fmt.Errorf("failed to set up hpke context: %w", err)
	}
	ciphertext, err := sealer.Seal(plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to seal payload: %w", err)
	}
	return append(enc, ciphertext...), nil
}
