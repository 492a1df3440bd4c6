package orderhash

import (
	"context"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/ProjectsTask/EasySwapOrderBook/common/utils"
	"github.com/ProjectsTask/EasySwapOrderBook/logger/xzap"
	"github.com/ProjectsTask/EasySwapOrderBook/model"
)

// Domain EIP-712 domain, 链 ID 与交易所合约地址由调用方提供
type Domain struct {
	Name            string
	Version         string
	ChainId         string
	ExchangeAddress string
}

// Separator keccak256(abi.encode(DOMAIN_TYPEHASH, keccak(name), keccak(version), chainId, verifyingContract))
func (d Domain) Separator() (common.Hash, error) {
	chainId, err := ParseUint256("chainId", d.ChainId)
	if err != nil {
		return NullDigest, err
	}
	exchange, err := ParseAddress("exchangeAddress", d.ExchangeAddress)
	if err != nil {
		return NullDigest, err
	}

	encoded, err := domainArgs.Pack(
		[32]byte(DomainTypeHash),
		[32]byte(crypto.Keccak256Hash([]byte(d.Name))),
		[32]byte(crypto.Keccak256Hash([]byte(d.Version))),
		chainId,
		exchange,
	)
	if err != nil {
		return NullDigest, malformed("domain", "abi encode failed", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// Identity 计算订单的规范 id
// 纯函数: 不做 I/O, 相同的逻辑订单 (含 maker) 总是得到相同的 id
type Identity struct {
	logger *zap.Logger
}

func NewIdentity(logger *zap.Logger) *Identity {
	if logger == nil {
		logger = xzap.WithContext(context.Background())
	}
	return &Identity{logger: logger}
}

// Normalize 把客户端提交的订单整理成参与哈希的字段集合
//  1. maker 覆盖订单中的 signer
//  2. 校验地址/数值格式
//  3. numItems 由各 token 数量求和得到, 不信任客户端传入的值;
//     所有 item 都不指定 token (集合出价) 时才沿用客户端的 numItems
func (i *Identity) Normalize(signed *model.Order, maker string) (*model.Order, error) {
	if signed == nil {
		return nil, malformed("order", "nil order", nil)
	}

	normalized := *signed
	normalized.Signer = strings.TrimSpace(maker)
	normalized.Signature = ""

	if err := utils.Verify(&normalized); err != nil {
		return nil, malformed("order", "validation failed", err)
	}
	normalized.Signer = utils.ToValidateAddress(normalized.Signer)

	total := new(big.Int)
	listed := false
	for _, item := range normalized.Nfts {
		for _, token := range item.Tokens {
			n, err := ParseUint256("numTokens", token.NumTokens)
			if err != nil {
				return nil, err
			}
			if n.Sign() == 0 {
				return nil, malformed("numTokens", "must be greater than 0", nil)
			}
			total.Add(total, n)
			listed = true
		}
	}

	if listed {
		if !total.IsInt64() || total.Int64() > math.MaxInt32 {
			return nil, malformed("numItems", "too many items", nil)
		}
		normalized.NumItems = int(total.Int64())
	} else if normalized.NumItems <= 0 {
		return nil, malformed("numItems", "collection order needs a positive numItems", nil)
	}

	return &normalized, nil
}

// ComputeOrderId keccak256("\x19\x01" ‖ domainSeparator ‖ hashOrder(normalized))
// 失败时返回 NullDigest 与 *MalformedOrderError, 不会 panic
func (i *Identity) ComputeOrderId(signed *model.Order, maker string, domain Domain) (common.Hash, error) {
	_, digest, err := i.Identify(signed, maker, domain)
	return digest, err
}

// Identify 规范化订单并计算 id, 返回参与哈希的规范化订单, 调用方无需再次 Normalize
func (i *Identity) Identify(signed *model.Order, maker string, domain Domain) (*model.Order, common.Hash, error) {
	normalized, digest, err := i.identify(signed, maker, domain)
	if err != nil {
		i.logger.Warn("failed on compute order id",
			zap.String("maker", maker),
			zap.String("chain_id", domain.ChainId),
			zap.Error(err))
		return nil, NullDigest, err
	}
	return normalized, digest, nil
}

// OrderId 返回 0x 开头的小写十六进制 id, 失败时为 NullDigest 的十六进制
func (i *Identity) OrderId(signed *model.Order, maker string, domain Domain) string {
	digest, _ := i.ComputeOrderId(signed, maker, domain)
	return digest.Hex()
}

func (i *Identity) identify(signed *model.Order, maker string, domain Domain) (*model.Order, common.Hash, error) {
	normalized, err := i.Normalize(signed, maker)
	if err != nil {
		return nil, NullDigest, err
	}
	separator, err := domain.Separator()
	if err != nil {
		return nil, NullDigest, err
	}
	orderHash, err := HashOrder(normalized)
	if err != nil {
		return nil, NullDigest, err
	}

	return normalized, crypto.Keccak256Hash([]byte{0x19, 0x01}, separator.Bytes(), orderHash.Bytes()), nil
}

// IsNullDigest 判断是否为失败哨兵
func IsNullDigest(h common.Hash) bool {
	return h == NullDigest
}
