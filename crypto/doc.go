// Package crypto implements the cryptographic primitives the messenger core
// needs from the encrypted transport layer: key pairs, authenticated
// public-key encryption, and the public friend address format.
//
// # Core Types
//
//   - [KeyPair]: NaCl crypto_box key pair (Curve25519) for a self identity.
//   - [Nonce]: 24-byte random nonce for encryption operations.
//   - [Address]: the 38-byte public friend address (public key + nospam +
//     checksum) used only to bootstrap add_friend.
//
// # Encryption and Decryption
//
//	nonce, _ := crypto.GenerateNonce()
//	ciphertext, _ := crypto.Encrypt(plaintext, nonce, peerPublicKey, myPrivateKey)
//	plaintext, _ := crypto.Decrypt(ciphertext, nonce, peerPublicKey, myPrivateKey)
//
// # Key Generation
//
//	keyPair, err := crypto.GenerateKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer crypto.WipeKeyPair(keyPair)
//
// # Secure Memory Handling
//
// Sensitive data should be wiped after use with [SecureWipe] or [ZeroBytes],
// which use constant-time XOR so the compiler cannot optimize the zeroing
// away.
package crypto
