package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultKDFIterations PBKDF2 默认迭代次数
const DefaultKDFIterations = 262144

// ErrInvalidPassword 密码错误（MAC 校验失败）
var ErrInvalidPassword = errors.New("invalid password")

// Keystore Keystore 文件结构
type Keystore struct {
	Version   int    `json:"version"`
	ID        string `json:"id"`
	Principal string `json:"principal"`
	Crypto    Crypto `json:"crypto"`
}

// Crypto 加密信息
type Crypto struct {
	Cipher       string       `json:"cipher"`
	CipherText   string       `json:"ciphertext"`
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"`
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"`
}

// CipherParams 加密参数
type CipherParams struct {
	IV string `json:"iv"`
}

// KDFParams PBKDF2 参数
type KDFParams struct {
	C     int    `json:"c"`
	DKLen int    `json:"dklen"`
	PRF   string `json:"prf"`
	Salt  string `json:"salt"`
}

// KeystoreManager Keystore 管理器，文件按 principal 命名
type KeystoreManager struct {
	keystoreDir string
	iterations  int
}

// KeystoreOption 管理器选项
type KeystoreOption func(*KeystoreManager)

// WithIterations 设置 PBKDF2 迭代次数（测试中可调低）
func WithIterations(n int) KeystoreOption {
	return func(km *KeystoreManager) {
		if n > 0 {
			km.iterations = n
		}
	}
}

// NewKeystoreManager 创建 Keystore 管理器
func NewKeystoreManager(keystoreDir string, opts ...KeystoreOption) (*KeystoreManager, error) {
	if err := os.MkdirAll(keystoreDir, 0o700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}

	km := &KeystoreManager{
		keystoreDir: keystoreDir,
		iterations:  DefaultKDFIterations,
	}
	for _, opt := range opts {
		opt(km)
	}
	return km, nil
}

// SaveWallet 加密保存钱包私钥
func (km *KeystoreManager) SaveWallet(w Wallet, password string) (string, error) {
	return km.Save(w.Principal().String(), ethPrivateKeyBytes(w), password)
}

// LoadWallet 解密并恢复钱包
func (km *KeystoreManager) LoadWallet(principal string, password string) (Wallet, error) {
	keyBytes, err := km.Load(principal, password)
	if err != nil {
		return nil, err
	}
	w, err := NewWalletFromBytes(keyBytes)
	if err != nil {
		return nil, err
	}
	if w.Principal().String() != principal {
		return nil, fmt.Errorf("keystore principal mismatch: file %s, key %s", principal, w.Principal())
	}
	return w, nil
}

// Save 保存私钥到 Keystore
func (km *KeystoreManager) Save(principal string, privateKey []byte, password string) (string, error) {
	salt := make([]byte, 32)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	key := deriveKey(password, salt, km.iterations)

	ciphertext, err := xorAESCTR(key[:16], privateKey, iv)
	if err != nil {
		return "", fmt.Errorf("encrypt private key: %w", err)
	}

	keystore := &Keystore{
		Version:   1,
		ID:        uuid.NewString(),
		Principal: principal,
		Crypto: Crypto{
			Cipher:       "aes-128-ctr",
			CipherText:   hex.EncodeToString(ciphertext),
			CipherParams: CipherParams{IV: hex.EncodeToString(iv)},
			KDF:          "pbkdf2",
			KDFParams: KDFParams{
				C:     km.iterations,
				DKLen: 32,
				PRF:   "hmac-sha256",
				Salt:  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(computeMAC(key, ciphertext)),
		},
	}

	data, err := json.MarshalIndent(keystore, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode keystore: %w", err)
	}

	keystorePath := km.path(principal)
	if err := os.WriteFile(keystorePath, data, 0o600); err != nil {
		return "", fmt.Errorf("write keystore file: %w", err)
	}
	return keystorePath, nil
}

// Load 从 Keystore 解密私钥
func (km *KeystoreManager) Load(principal string, password string) ([]byte, error) {
	data, err := os.ReadFile(km.path(principal))
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}

	var keystore Keystore
	if err := json.Unmarshal(data, &keystore); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}
	if keystore.Crypto.KDF != "pbkdf2" {
		return nil, fmt.Errorf("unsupported kdf: %s", keystore.Crypto.KDF)
	}

	salt, err := hex.DecodeString(keystore.Crypto.KDFParams.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	iv, err := hex.DecodeString(keystore.Crypto.CipherParams.IV)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	ciphertext, err := hex.DecodeString(keystore.Crypto.CipherText)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	actualMAC, err := hex.DecodeString(keystore.Crypto.MAC)
	if err != nil {
		return nil, fmt.Errorf("decode mac: %w", err)
	}

	key := deriveKey(password, salt, keystore.Crypto.KDFParams.C)
	if !hmac.Equal(computeMAC(key, ciphertext), actualMAC) {
		return nil, ErrInvalidPassword
	}

	privateKey, err := xorAESCTR(key[:16], ciphertext, iv)
	if err != nil {
		return nil, fmt.Errorf("decrypt private key: %w", err)
	}
	return privateKey, nil
}

// List 列出已保存的 principal
func (km *KeystoreManager) List() ([]string, error) {
	entries, err := os.ReadDir(km.keystoreDir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(out)
	return out, nil
}

func (km *KeystoreManager) path(principal string) string {
	return filepath.Join(km.keystoreDir, principal+".json")
}

// deriveKey PBKDF2-HMAC-SHA256，输出 32 字节
func deriveKey(password string, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = DefaultKDFIterations
	}
	return pbkdf2.Key([]byte(password), salt, iterations, 32, sha256.New)
}

// xorAESCTR AES-CTR 加解密（对称）
func xorAESCTR(key, in, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}

// computeMAC sha256(key[16:32] || ciphertext)
func computeMAC(key, ciphertext []byte) []byte {
	buf := make([]byte, 0, 16+len(ciphertext))
	buf = append(buf, key[16:32]...)
	buf = append(buf, ciphertext...)
	sum := sha256.Sum256(buf)
	return sum[:]
}
