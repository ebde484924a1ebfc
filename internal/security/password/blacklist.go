package password

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Blacklist es un set inmutable de contraseñas prohibidas (lowercase).
type Blacklist struct {
	data map[string]struct{}
}

// LoadBlacklist lee un archivo con una contraseña por línea; # comenta.
// path vacío devuelve una lista vacía.
func LoadBlacklist(path string) (*Blacklist, error) {
	if strings.TrimSpace(path) == "" {
		return NewBlacklist(), nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBlacklist(f)
}

func ReadBlacklist(r io.Reader) (*Blacklist, error) {
	bl := NewBlacklist()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		bl.add(sc.Text())
	}
	return bl, sc.Err()
}

func NewBlacklist(entries ...string) *Blacklist {
	bl := &Blacklist{data: map[string]struct{}{}}
	for _, e := range entries {
		bl.add(e)
	}
	return bl
}

func (b *Blacklist) add(s string) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s != "" && !strings.HasPrefix(s, "#") {
		b.data[s] = struct{}{}
	}
}

func (b *Blacklist) Contains(pwd string) bool {
	if b == nil {
		return false
	}
	_, ok := b.data[strings.ToLower(strings.TrimSpace(pwd))]
	return ok
}
