package spdnet

import (
	"errors"
	"fmt"

	"github.com/flynn/noise"
)

// NoiseOverhead is the AES-GCM authentication tag overhead added to sealed
// content.
const NoiseOverhead = 16

// defaultCipherSuite is the Noise cipher suite used for secure REGISTER
// exchanges. Cached at package level since it's immutable and reusable.
var defaultCipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256)

var (
	// ErrHandshakeFailed is returned when the Noise handshake fails.
	ErrHandshakeFailed = errors.New("spdnet: handshake failed")
	// ErrHandshakeIncomplete is returned when the handshake is not complete.
	ErrHandshakeIncomplete = errors.New("spdnet: handshake not complete")
	// ErrNoiseInitFailed is returned when the Noise protocol state cannot
	// be initialized.
	ErrNoiseInitFailed = errors.New("spdnet: noise handshake initialization failed")
	// ErrNoiseMsgFailed is returned when a Noise handshake message cannot
	// be created.
	ErrNoiseMsgFailed = errors.New("spdnet: handshake message creation failed")
)

// noiseHandshake wraps a Noise Protocol handshake used, when
// Config.secureRegister is enabled, to seal the content frame of a
// REGISTER/UNREGISTER exchange.
type noiseHandshake struct {
	hs          *noise.HandshakeState
	cs1         *noise.CipherState
	cs2         *noise.CipherState
	isComplete  bool
	isInitiator bool
}

// newNoiseInitiator starts a Noise handshake as the connecting node, using
// the NN pattern (no static keys, anonymous).
func newNoiseInitiator() (*noiseHandshake, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: defaultCipherSuite,
		Pattern:     noise.HandshakeNN,
		Initiator:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoiseInitFailed, err)
	}
	return &noiseHandshake{hs: hs, isInitiator: true}, nil
}

// newNoiseResponder starts a Noise handshake as the router accepting a
// REGISTER, using the NN pattern.
func newNoiseResponder() (*noiseHandshake, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: defaultCipherSuite,
		Pattern:     noise.HandshakeNN,
		Initiator:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoiseInitFailed, err)
	}
	return &noiseHandshake{hs: hs, isInitiator: false}, nil
}

// writeMessage creates the next handshake message, encrypting payload.
func (nh *noiseHandshake) writeMessage(payload []byte) ([]byte, error) {
	msg, cs1, cs2, err := nh.hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoiseMsgFailed, err)
	}
	if cs1 != nil && cs2 != nil {
		nh.cs1, nh.cs2 = cs1, cs2
		nh.isComplete = true
	}
	return msg, nil
}

// readMessage processes a handshake message from the peer, decrypting its
// payload.
func (nh *noiseHandshake) readMessage(msg []byte) ([]byte, error) {
	payload, cs1, cs2, err := nh.hs.ReadMessage(nil, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if cs1 != nil && cs2 != nil {
		nh.cs1, nh.cs2 = cs1, cs2
		nh.isComplete = true
	}
	return payload, nil
}

// seal encrypts application data using the established session cipher.
func (nh *noiseHandshake) seal(plaintext []byte) ([]byte, error) {
	if !nh.isComplete {
		return nil, ErrHandshakeIncomplete
	}
	if nh.isInitiator {
		return nh.cs1.Encrypt(nil, nil, plaintext)
	}
	return nh.cs2.Encrypt(nil, nil, plaintext)
}

// unseal decrypts application data using the established session cipher.
func (nh *noiseHandshake) unseal(ciphertext []byte) ([]byte, error) {
	if !nh.isComplete {
		return nil, ErrHandshakeIncomplete
	}
	if nh.isInitiator {
		return nh.cs2.Decrypt(nil, nil, ciphertext)
	}
	return nh.cs1.Decrypt(nil, nil, ciphertext)
}
