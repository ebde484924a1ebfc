// Package tokens genera valores opacos aleatorios y sus hashes de almacenamiento.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// MinBytes es la entropía mínima aceptada para cualquier token emitido.
const MinBytes = 16

var ErrTooShort = errors.New("tokens: fewer than 16 bytes of entropy")

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b, err := random(nBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateHex igual que GenerateOpaqueToken pero en hex; se usa donde el
// valor viaja en formularios HTML.
func GenerateHex(nBytes int) (string, error) {
	b, err := random(nBytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func random(n int) ([]byte, error) {
	if n < MinBytes {
		return nil, ErrTooShort
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding (para guardar en DB).
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Equal compara dos tokens en tiempo constante.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
