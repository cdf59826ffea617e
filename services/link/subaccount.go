package link

import (
	"fmt"
	"net/url"

	"github.com/btcsuite/btcutil/base58"
	"github.com/google/uuid"

	"github.com/cashierlink/link-sdk-go/types"
)

// shareCodeVersion 分享码版本字节
const shareCodeVersion byte = 0x4c

// DeriveSubaccount 链接托管子账户：UUID 的 16 字节左对齐放入 32 字节，其余为 0
//
// 已有资金按该子账户寻址，算法不可更改。
func DeriveSubaccount(linkID string) ([32]byte, error) {
	var out [32]byte
	id, err := uuid.Parse(linkID)
	if err != nil {
		return out, fmt.Errorf("invalid link id %q: %w", linkID, err)
	}
	copy(out[:16], id[:])
	return out, nil
}

// VaultAccount 链接托管账户（后端 canister + 派生子账户）
func VaultAccount(backendCanisterID, linkID string) (types.Wallet, error) {
	sub, err := DeriveSubaccount(linkID)
	if err != nil {
		return types.Wallet{}, err
	}
	return types.Wallet{Address: backendCanisterID, Subaccount: sub[:]}, nil
}

// ShareCode 链接 ID 的 Base58Check 短码
func ShareCode(linkID string) (string, error) {
	id, err := uuid.Parse(linkID)
	if err != nil {
		return "", fmt.Errorf("invalid link id %q: %w", linkID, err)
	}
	return base58.CheckEncode(id[:], shareCodeVersion), nil
}

// ParseShareCode 短码还原为链接 ID
func ParseShareCode(code string) (string, error) {
	payload, version, err := base58.CheckDecode(code)
	if err != nil {
		return "", fmt.Errorf("decode share code: %w", err)
	}
	if version != shareCodeVersion {
		return "", fmt.Errorf("unexpected share code version 0x%02x", version)
	}
	id, err := uuid.FromBytes(payload)
	if err != nil {
		return "", fmt.Errorf("share code payload: %w", err)
	}
	return id.String(), nil
}

// ShareURL 领取页面地址：{base}/l/{code}
func ShareURL(base, linkID string) (string, error) {
	code, err := ShareCode(linkID)
	if err != nil {
		return "", err
	}
	return url.JoinPath(base, "l", code)
}
