package credstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

// Encrypted stores credentials in a single file encrypted with AES-256-GCM
// under a key derived from a passphrase with Argon2id. This is the backing for
// devices where tokens must not sit on disk in the clear.
// File format: [16-byte salt][12-byte nonce][ciphertext].
type Encrypted struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

func NewEncrypted(path, passphrase string) (*Encrypted, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encrypted store requires a passphrase")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Encrypted{path: path, passphrase: passphrase}, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func (e *Encrypted) Get(_ context.Context, key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kv, err := e.read()
	if err != nil {
		return "", false
	}
	v, ok := kv[key]
	return v, ok
}

func (e *Encrypted) Set(_ context.Context, key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	kv, err := e.read()
	if err != nil {
		kv = map[string]string{}
	}
	kv[key] = value
	return e.write(kv)
}

func (e *Encrypted) Remove(_ context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	kv, err := e.read()
	if err != nil {
		return nil
	}
	delete(kv, key)
	return e.write(kv)
}

func (e *Encrypted) SetMany(_ context.Context, set map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	kv, err := e.read()
	if err != nil {
		kv = map[string]string{}
	}
	for k, v := range set {
		kv[k] = v
	}
	return e.write(kv)
}

func (e *Encrypted) read() (map[string]string, error) {
	blob, err := os.ReadFile(e.path)
	if err != nil {
		return nil, err
	}
	if len(blob) < saltSize+nonceSize {
		return nil, fmt.Errorf("store file truncated")
	}
	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+nonceSize]
	ciphertext := blob[saltSize+nonceSize:]

	key := deriveKey(e.passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt store: %w", err)
	}

	var kv map[string]string
	if err := json.Unmarshal(plaintext, &kv); err != nil {
		return nil, err
	}
	return kv, nil
}

func (e *Encrypted) write(kv map[string]string) error {
	plaintext, err := json.Marshal(kv)
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	key := deriveKey(e.passphrase, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("create gcm: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
