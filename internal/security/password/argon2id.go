// Package password hashea y verifica secretos de identidades.
//
// Formato de almacenamiento: PHC argon2id
// ($argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>). Hashes bcrypt importados de
// la base anterior se siguen aceptando en Verify.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
}

var Default = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, KeyLen: 32}

// Fast es para tests: mismo formato, costo mínimo.
var Fast = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

var ErrEmpty = errors.New("password: empty secret")

// Hash devuelve un PHC string con salt aleatorio de 16 bytes.
func Hash(p Params, plain string) (string, error) {
	if plain == "" {
		return "", ErrEmpty
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// Verify compara plain contra el hash almacenado. Nunca entra en pánico:
// un hash malformado o desconocido devuelve false.
func Verify(plain, stored string) bool {
	switch {
	case strings.HasPrefix(stored, "$argon2id$"):
		return verifyArgon2id(plain, stored)
	case strings.HasPrefix(stored, "$2a$"), strings.HasPrefix(stored, "$2b$"), strings.HasPrefix(stored, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
	}
	return false
}

// NeedsRehash reporta si stored no es argon2id con los parámetros p
// (ej: hashes bcrypt heredados). Se usa después de un login exitoso.
func NeedsRehash(p Params, stored string) bool {
	ph, err := parsePHC(stored)
	if err != nil {
		return true
	}
	return ph.params.Memory != p.Memory || ph.params.Time != p.Time ||
		ph.params.Parallelism != p.Parallelism || uint32(len(ph.key)) != p.KeyLen
}

// RandomPlaceholder genera un secreto que nadie conoce, para identidades
// creadas vía OAuth que no inician sesión con contraseña.
func RandomPlaceholder() string {
	return uuid.NewString()
}

type phc struct {
	params Params
	salt   []byte
	key    []byte
}

func parsePHC(s string) (phc, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return phc{}, errors.New("password: not an argon2id hash")
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return phc{}, errors.New("password: unsupported argon2 version")
	}
	var out phc
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return phc{}, errors.New("password: bad params")
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return phc{}, err
		}
		switch k {
		case "m":
			out.params.Memory = uint32(n)
		case "t":
			out.params.Time = uint32(n)
		case "p":
			if n == 0 || n > 255 {
				return phc{}, errors.New("password: bad parallelism")
			}
			out.params.Parallelism = uint8(n)
		}
	}
	if out.params.Memory == 0 || out.params.Time == 0 || out.params.Parallelism == 0 {
		return phc{}, errors.New("password: missing params")
	}
	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return phc{}, err
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return phc{}, err
	}
	if len(out.key) == 0 {
		return phc{}, errors.New("password: empty key")
	}
	out.params.KeyLen = uint32(len(out.key))
	return out, nil
}

func verifyArgon2id(plain, stored string) bool {
	ph, err := parsePHC(stored)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(plain), ph.salt, ph.params.Time, ph.params.Memory, ph.params.Parallelism, ph.params.KeyLen)
	return subtle.ConstantTimeCompare(key, ph.key) == 1
}
