package wallet

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Wallet 钱包接口
type Wallet interface {
	// Principal 钱包身份
	Principal() Principal

	// PublicKeyDER DER 编码的公钥，随签名一起提交
	PublicKeyDER() []byte

	// SignMessage 对 sha256(msg) 签名
	SignMessage(msg []byte) ([]byte, error)

	// SignHash 签名 32 字节哈希，返回 r || s
	SignHash(hash []byte) ([]byte, error)

	// PrivateKey 获取私钥（谨慎使用）
	PrivateKey() *ecdsa.PrivateKey
}

// SimpleWallet 基于 secp256k1 私钥的钱包
type SimpleWallet struct {
	privateKey *ecdsa.PrivateKey
	publicDER  []byte
	principal  Principal
	createdAt  time.Time
}

// NewWallet 生成新钱包
func NewWallet() (Wallet, error) {
	privateKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	return newSimpleWallet(privateKey), nil
}

// NewWalletFromPrivateKey 从十六进制私钥创建钱包
func NewWalletFromPrivateKey(privateKeyHex string) (Wallet, error) {
	privateKeyBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return NewWalletFromBytes(privateKeyBytes)
}

// NewWalletFromBytes 从 32 字节私钥创建钱包
func NewWalletFromBytes(privateKeyBytes []byte) (Wallet, error) {
	if len(privateKeyBytes) != 32 {
		return nil, fmt.Errorf("invalid private key length: expected 32 bytes, got %d", len(privateKeyBytes))
	}
	privateKey, err := ethcrypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse secp256k1 private key failed: %w", err)
	}
	return newSimpleWallet(privateKey), nil
}

func newSimpleWallet(privateKey *ecdsa.PrivateKey) *SimpleWallet {
	der := encodePublicKeyDER(&privateKey.PublicKey)
	return &SimpleWallet{
		privateKey: privateKey,
		publicDER:  der,
		principal:  SelfAuthenticating(der),
		createdAt:  time.Now(),
	}
}

// Principal 钱包身份
func (w *SimpleWallet) Principal() Principal {
	return w.principal
}

// PublicKeyDER DER 编码公钥
func (w *SimpleWallet) PublicKeyDER() []byte {
	return append([]byte(nil), w.publicDER...)
}

// SignHash 签名哈希，RFC6979 确定性签名
func (w *SimpleWallet) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := ethcrypto.Sign(hash, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("secp256k1 sign: %w", err)
	}
	// 去掉恢复位 V
	return sig[:64], nil
}

// SignMessage 签名消息
func (w *SimpleWallet) SignMessage(msg []byte) ([]byte, error) {
	hash := sha256.Sum256(msg)
	return w.SignHash(hash[:])
}

// PrivateKey 获取私钥
func (w *SimpleWallet) PrivateKey() *ecdsa.PrivateKey {
	return w.privateKey
}

// VerifySignature 用 DER 公钥校验 r || s 签名
func VerifySignature(derPublicKey, hash, signature []byte) bool {
	if len(derPublicKey) != len(secp256k1DERPrefix)+65 {
		return false
	}
	return ethcrypto.VerifySignature(derPublicKey[len(secp256k1DERPrefix):], hash, signature)
}

// encodePublicKeyDER secp256k1 公钥转 SubjectPublicKeyInfo
func encodePublicKeyDER(pub *ecdsa.PublicKey) []byte {
	uncompressed := ethcrypto.FromECDSAPub(pub)
	out := make([]byte, 0, len(secp256k1DERPrefix)+len(uncompressed))
	out = append(out, secp256k1DERPrefix...)
	return append(out, uncompressed...)
}

// ethPrivateKeyBytes 私钥 32 字节序列化
func ethPrivateKeyBytes(w Wallet) []byte {
	return ethcrypto.FromECDSA(w.PrivateKey())
}
