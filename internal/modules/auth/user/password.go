package user

import (
	"crypto/rand"
	"math/big"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()_+"

// RandomPassword draws n characters from crypto/rand.
func RandomPassword(n int) (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// decoy is compared against when the identifier is unknown so both failure
// paths cost one bcrypt comparison.
type decoy struct {
	once sync.Once
	hash []byte
}

func (d *decoy) compare(cost int, password string) {
	d.once.Do(func() {
		d.hash, _ = bcrypt.GenerateFromPassword([]byte("decoy-password"), cost)
	})
	_ = bcrypt.CompareHashAndPassword(d.hash, []byte(password))
}
