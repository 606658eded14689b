package epoch

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Cipher is the opaque cipher state bound to an epoch.
type Cipher interface {
	// Overhead returns how many bytes Seal adds to a plaintext.
	Overhead() int

	// Seal protects an outbound record payload.
	Seal(recordNumber uint64, additionalData, plaintext []byte) ([]byte, error)

	// Open authenticates and decrypts an inbound record payload.
	Open(recordNumber uint64, additionalData, ciphertext []byte) ([]byte, error)
}

// ErrAuthentication indicates a record that failed authentication.
var ErrAuthentication = errors.New("record authentication failed")

// NullCipher passes payloads through unchanged. It is the cipher of epoch 0.
type NullCipher struct{}

// Overhead returns 0.
func (NullCipher) Overhead() int { return 0 }

// Seal returns a copy of the plaintext.
func (NullCipher) Seal(_ uint64, _, plaintext []byte) ([]byte, error) {
	return append([]byte(nil), plaintext...), nil
}

// Open returns a copy of the ciphertext.
func (NullCipher) Open(_ uint64, _, ciphertext []byte) ([]byte, error) {
	return append([]byte(nil), ciphertext...), nil
}

// Suite selects the AEAD algorithm.
type Suite uint8

const (
	// SuiteChaCha20Poly1305 uses ChaCha20-Poly1305.
	SuiteChaCha20Poly1305 Suite = iota + 1
	// SuiteAES128GCM uses AES-128 in GCM mode.
	SuiteAES128GCM
)

// String returns the suite name.
func (s Suite) String() string {
	switch s {
	case SuiteChaCha20Poly1305:
		return "CHACHA20_POLY1305"
	case SuiteAES128GCM:
		return "AES_128_GCM"
	default:
		return "UNKNOWN"
	}
}

// KeySize returns the key length of the suite in bytes.
func (s Suite) KeySize() int {
	switch s {
	case SuiteChaCha20Poly1305:
		return chacha20poly1305.KeySize
	case SuiteAES128GCM:
		return 16
	default:
		return 0
	}
}

// IVSize is the length of the fixed per-direction nonce material.
const IVSize = 12

// AEADCipher protects records with an AEAD. Outbound and inbound directions
// use independent keys.
type AEADCipher struct {
	suite   Suite
	writer  cipher.AEAD
	writeIV [IVSize]byte
	reader  cipher.AEAD
	readIV  [IVSize]byte
}

// KeyMaterial holds the keys and IVs of both directions.
type KeyMaterial struct {
	WriteKey []byte
	WriteIV  []byte
	ReadKey  []byte
	ReadIV   []byte
}

// NewAEADCipher creates a cipher state from explicit key material.
func NewAEADCipher(suite Suite, km KeyMaterial) (*AEADCipher, error) {
	if len(km.WriteIV) != IVSize || len(km.ReadIV) != IVSize {
		return nil, fmt.Errorf("%w: IV must be %d bytes", ErrInvalidArgument, IVSize)
	}

	writer, err := newAEAD(suite, km.WriteKey)
	if err != nil {
		return nil, err
	}
	reader, err := newAEAD(suite, km.ReadKey)
	if err != nil {
		return nil, err
	}

	c := &AEADCipher{suite: suite, writer: writer, reader: reader}
	copy(c.writeIV[:], km.WriteIV)
	copy(c.readIV[:], km.ReadIV)
	return c, nil
}

func newAEAD(suite Suite, key []byte) (cipher.AEAD, error) {
	if len(key) != suite.KeySize() {
		return nil, fmt.Errorf("%w: %s key must be %d bytes", ErrInvalidArgument, suite, suite.KeySize())
	}

	switch suite {
	case SuiteChaCha20Poly1305:
		return chacha20poly1305.New(key)
	case SuiteAES128GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("%w: unknown suite %d", ErrInvalidArgument, suite)
	}
}

// Suite returns the AEAD algorithm in use.
func (c *AEADCipher) Suite() Suite {
	return c.suite
}

// Overhead returns the AEAD tag size.
func (c *AEADCipher) Overhead() int {
	return c.writer.Overhead()
}

// Seal encrypts and authenticates plaintext.
func (c *AEADCipher) Seal(recordNumber uint64, additionalData, plaintext []byte) ([]byte, error) {
	nonce := makeNonce(c.writeIV, recordNumber)
	return c.writer.Seal(nil, nonce[:], plaintext, additionalData), nil
}

// Open authenticates and decrypts ciphertext.
func (c *AEADCipher) Open(recordNumber uint64, additionalData, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < c.reader.Overhead() {
		return nil, ErrAuthentication
	}
	nonce := makeNonce(c.readIV, recordNumber)
	plaintext, err := c.reader.Open(nil, nonce[:], ciphertext, additionalData)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// makeNonce XORs the record number into the low 8 bytes of the IV.
func makeNonce(iv [IVSize]byte, recordNumber uint64) [IVSize]byte {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], recordNumber)
	nonce := iv
	for i := range seq {
		nonce[IVSize-8+i] ^= seq[i]
	}
	return nonce
}

// HKDF labels for key expansion.
const (
	labelClient = "mash-dtls client write"
	labelServer = "mash-dtls server write"
)

// DeriveCiphers expands a shared secret into matching client and server cipher
// states. The client's write direction is the server's read direction.
func DeriveCiphers(suite Suite, secret, salt []byte) (client, server *AEADCipher, err error) {
	if suite.KeySize() == 0 {
		return nil, nil, fmt.Errorf("%w: unknown suite %d", ErrInvalidArgument, suite)
	}

	clientKey, clientIV, err := expand(suite, secret, salt, labelClient)
	if err != nil {
		return nil, nil, err
	}
	serverKey, serverIV, err := expand(suite, secret, salt, labelServer)
	if err != nil {
		return nil, nil, err
	}

	client, err = NewAEADCipher(suite, KeyMaterial{
		WriteKey: clientKey, WriteIV: clientIV,
		ReadKey: serverKey, ReadIV: serverIV,
	})
	if err != nil {
		return nil, nil, err
	}
	server, err = NewAEADCipher(suite, KeyMaterial{
		WriteKey: serverKey, WriteIV: serverIV,
		ReadKey: clientKey, ReadIV: clientIV,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, server, nil
}

func expand(suite Suite, secret, salt []byte, label string) (key, iv []byte, err error) {
	r := hkdf.New(sha256.New, secret, salt, []byte(label))
	key = make([]byte, suite.KeySize())
	iv = make([]byte, IVSize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, nil, fmt.Errorf("failed to derive key: %w", err)
	}
	if _, err := io.ReadFull(r, iv); err != nil {
		return nil, nil, fmt.Errorf("failed to derive IV: %w", err)
	}
	return key, iv, nil
}

// Compile-time interface satisfaction checks.
var (
	_ Cipher = NullCipher{}
	_ Cipher = (*AEADCipher)(nil)
)
