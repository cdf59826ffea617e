package wallet

import (
	"bytes"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
)

// 自认证 principal 的类型字节
const (
	selfAuthenticatingSuffix = 0x02
	anonymousSuffix          = 0x04
)

// secp256k1 公钥的 SubjectPublicKeyInfo DER 前缀（未压缩 65 字节公钥）
var secp256k1DERPrefix = []byte{
	0x30, 0x56, 0x30, 0x10, 0x06, 0x07, 0x2a, 0x86, 0x48, 0xce, 0x3d, 0x02, 0x01,
	0x06, 0x05, 0x2b, 0x81, 0x04, 0x00, 0x0a, 0x03, 0x42, 0x00,
}

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Principal 账户身份（最多 29 字节）
type Principal []byte

// AnonymousPrincipal 匿名身份
var AnonymousPrincipal = Principal{anonymousSuffix}

// SelfAuthenticating 由 DER 编码公钥派生 principal：sha224(der) || 0x02
func SelfAuthenticating(derPublicKey []byte) Principal {
	sum := sha256.Sum224(derPublicKey)
	out := make([]byte, 0, len(sum)+1)
	out = append(out, sum[:]...)
	return append(out, selfAuthenticatingSuffix)
}

// String 文本形式：base32(crc32 || bytes)，小写，每 5 个字符用 '-' 分隔
func (p Principal) String() string {
	buf := make([]byte, 4+len(p))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(p))
	copy(buf[4:], p)

	enc := strings.ToLower(principalEncoding.EncodeToString(buf))
	var sb strings.Builder
	for i := 0; i < len(enc); i += 5 {
		if i > 0 {
			sb.WriteByte('-')
		}
		end := i + 5
		if end > len(enc) {
			end = len(enc)
		}
		sb.WriteString(enc[i:end])
	}
	return sb.String()
}

// Equal 字节相等
func (p Principal) Equal(other Principal) bool {
	return bytes.Equal(p, other)
}

// IsAnonymous 是否为匿名身份
func (p Principal) IsAnonymous() bool {
	return p.Equal(AnonymousPrincipal)
}

// ParsePrincipal 解析文本形式并校验 CRC
func ParsePrincipal(text string) (Principal, error) {
	raw := strings.ToUpper(strings.ReplaceAll(text, "-", ""))
	decoded, err := principalEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode principal: %w", err)
	}
	if len(decoded) < 4 || len(decoded) > 4+29 {
		return nil, fmt.Errorf("invalid principal length: %d", len(decoded))
	}

	p := Principal(decoded[4:])
	if binary.BigEndian.Uint32(decoded[:4]) != crc32.ChecksumIEEE(p) {
		return nil, fmt.Errorf("principal checksum mismatch")
	}
	if p.String() != strings.ToLower(text) {
		return nil, fmt.Errorf("principal %q is not in canonical form", text)
	}
	return p, nil
}
