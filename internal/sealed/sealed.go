// Package sealed encrypts survey answers at rest with age. Ciphertext is
// base64-encoded so it fits a TEXT column.
package sealed

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// ErrNoIdentity is returned by Open when the box was built without a private key.
var ErrNoIdentity = errors.New("no age identity configured")

// Box seals to one or more recipients and, when an identity is present,
// opens what was sealed to it.
type Box struct {
	recipients []age.Recipient
	identity   *age.X25519Identity
}

// NewBox parses comma-separated age recipients (age1...) and an optional
// identity (AGE-SECRET-KEY-1...).
func NewBox(recipientKeys, identityKey string) (*Box, error) {
	var box Box
	for _, key := range strings.Split(recipientKeys, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key: %w", err)
		}
		box.recipients = append(box.recipients, recipient)
	}
	if len(box.recipients) == 0 {
		return nil, errors.New("at least one recipient is required")
	}

	if identityKey = strings.TrimSpace(identityKey); identityKey != "" {
		identity, err := age.ParseX25519Identity(identityKey)
		if err != nil {
			return nil, fmt.Errorf("parsing identity: %w", err)
		}
		box.identity = identity
	}
	return &box, nil
}

// Seal encrypts plaintext to every recipient.
func (b *Box) Seal(plaintext []byte) (string, error) {
	var buf bytes.Buffer
	writer, err := age.Encrypt(&buf, b.recipients...)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CanOpen reports whether Open can succeed.
func (b *Box) CanOpen() bool {
	return b.identity != nil
}

// Open decrypts a value produced by Seal.
func (b *Box) Open(ciphertext string) ([]byte, error) {
	if b.identity == nil {
		return nil, ErrNoIdentity
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 ciphertext: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(raw), b.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return plaintext, nil
}

// GenerateKeypair returns a fresh identity and its recipient, for the
// `keys` CLI command.
func GenerateKeypair() (identity, recipient string, err error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("generating age keypair: %w", err)
	}
	return id.String(), id.Recipient().String(), nil
}
