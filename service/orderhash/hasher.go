package orderhash

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/ProjectsTask/EasySwapOrderBook/model"
)

// 类型签名, 与交易所合约中的 typehash 保持一致, 依赖类型按字母序拼接在后面
const (
	TokenInfoType = "TokenInfo(uint256 tokenId,uint256 numTokens)"
	OrderItemType = "OrderItem(address collection,TokenInfo[] tokens)" + TokenInfoType
	OrderType     = "Order(bool isSellOrder,address signer,uint256[] constraints,OrderItem[] nfts,address[] execParams,bytes extraParams)" + OrderItemType
	DomainType    = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

	// EthDecimals ETH 到 wei 的精度
	EthDecimals = 18
)

var (
	TokenInfoTypeHash = crypto.Keccak256Hash([]byte(TokenInfoType))
	OrderItemTypeHash = crypto.Keccak256Hash([]byte(OrderItemType))
	OrderTypeHash     = crypto.Keccak256Hash([]byte(OrderType))
	DomainTypeHash    = crypto.Keccak256Hash([]byte(DomainType))

	// NullDigest 哈希失败时返回的哨兵值 (全 0)
	NullDigest = common.Hash{}
)

var (
	bytes32Ty, _ = abi.NewType("bytes32", "", nil)
	uint256Ty, _ = abi.NewType("uint256", "", nil)
	addressTy, _ = abi.NewType("address", "", nil)
	boolTy, _    = abi.NewType("bool", "", nil)

	tokenInfoArgs = abi.Arguments{{Type: bytes32Ty}, {Type: uint256Ty}, {Type: uint256Ty}}
	orderItemArgs = abi.Arguments{{Type: bytes32Ty}, {Type: addressTy}, {Type: bytes32Ty}}
	orderArgs     = abi.Arguments{
		{Type: bytes32Ty}, // typehash
		{Type: boolTy},    // isSellOrder
		{Type: addressTy}, // signer
		{Type: bytes32Ty}, // constraints
		{Type: bytes32Ty}, // nfts
		{Type: bytes32Ty}, // execParams
		{Type: bytes32Ty}, // extraParams
	}
	domainArgs = abi.Arguments{
		{Type: bytes32Ty}, {Type: bytes32Ty}, {Type: bytes32Ty}, {Type: uint256Ty}, {Type: addressTy},
	}
	extraParamsArgs = abi.Arguments{{Type: addressTy}}
)

// HashTokenInfo keccak256(abi.encode(TOKEN_INFO_TYPEHASH, tokenId, numTokens))
func HashTokenInfo(tokenId, numTokens string) (common.Hash, error) {
	id, err := ParseUint256("tokenId", tokenId)
	if err != nil {
		return NullDigest, err
	}
	num, err := ParseUint256("numTokens", numTokens)
	if err != nil {
		return NullDigest, err
	}

	encoded, err := tokenInfoArgs.Pack([32]byte(TokenInfoTypeHash), id, num)
	if err != nil {
		return NullDigest, malformed("tokenInfo", "abi encode failed", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// HashTokens 按输入顺序哈希每个 token 后再对拼接结果哈希
// 不做排序: 顺序不同哈希不同, 需要跨提交可复现时由调用方保证顺序
func HashTokens(tokens []model.TokenInfo) (common.Hash, error) {
	buf := make([]byte, 0, len(tokens)*common.HashLength)
	for _, t := range tokens {
		h, err := HashTokenInfo(t.TokenId, t.NumTokens)
		if err != nil {
			return NullDigest, err
		}
		buf = append(buf, h.Bytes()...)
	}
	return crypto.Keccak256Hash(buf), nil
}

// HashOrderItem keccak256(abi.encode(ORDER_ITEM_TYPEHASH, collection, hashTokens(tokens)))
func HashOrderItem(collectionAddress string, tokens []model.TokenInfo) (common.Hash, error) {
	collection, err := ParseAddress("collectionAddress", collectionAddress)
	if err != nil {
		return NullDigest, err
	}
	tokensHash, err := HashTokens(tokens)
	if err != nil {
		return NullDigest, err
	}

	encoded, err := orderItemArgs.Pack([32]byte(OrderItemTypeHash), collection, [32]byte(tokensHash))
	if err != nil {
		return NullDigest, malformed("orderItem", "abi encode failed", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// HashOrderItems 按输入顺序哈希每个 item 后再对拼接结果哈希
func HashOrderItems(items []model.OrderItem) (common.Hash, error) {
	buf := make([]byte, 0, len(items)*common.HashLength)
	for _, item := range items {
		h, err := HashOrderItem(item.CollectionAddress, item.Tokens)
		if err != nil {
			return NullDigest, err
		}
		buf = append(buf, h.Bytes()...)
	}
	return crypto.Keccak256Hash(buf), nil
}

// HashExecParams keccak256(abi.encodePacked([complication, currency]))
// encodePacked 对数组元素仍按 32 字节补齐
func HashExecParams(complicationAddress, currencyAddress string) (common.Hash, error) {
	complication, err := ParseAddress("complicationAddress", complicationAddress)
	if err != nil {
		return NullDigest, err
	}
	currency, err := ParseAddress("currencyAddress", currencyAddress)
	if err != nil {
		return NullDigest, err
	}

	buf := make([]byte, 0, 2*common.HashLength)
	buf = append(buf, common.LeftPadBytes(complication.Bytes(), common.HashLength)...)
	buf = append(buf, common.LeftPadBytes(currency.Bytes(), common.HashLength)...)
	return crypto.Keccak256Hash(buf), nil
}

// HashExtraParams keccak256(abi.encode(buyer)), 无指定买家时编码零地址
func HashExtraParams(buyer string) (common.Hash, error) {
	addr := common.Address{}
	if strings.TrimSpace(buyer) != "" {
		var err error
		if addr, err = ParseAddress("buyer", buyer); err != nil {
			return NullDigest, err
		}
	}

	encoded, err := extraParamsArgs.Pack(addr)
	if err != nil {
		return NullDigest, malformed("extraParams", "abi encode failed", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// Constraints 订单约束, 全部已换算为链上单位
type Constraints struct {
	NumItems       *big.Int
	StartPriceWei  *big.Int
	EndPriceWei    *big.Int
	StartTimeSec   *big.Int
	EndTimeSec     *big.Int
	MinBpsToSeller *big.Int
	Nonce          *big.Int
}

// Words 按合约中的顺序返回约束
func (c *Constraints) Words() []*big.Int {
	return []*big.Int{c.NumItems, c.StartPriceWei, c.EndPriceWei, c.StartTimeSec, c.EndTimeSec, c.MinBpsToSeller, c.Nonce}
}

// BuildConstraints 把订单中的价格/时间换算为 wei/秒
func BuildConstraints(o *model.Order) (*Constraints, error) {
	if o.NumItems < 0 {
		return nil, malformed("numItems", "must not be negative", nil)
	}
	if o.MinBpsToSeller < 0 {
		return nil, malformed("minBpsToSeller", "must not be negative", nil)
	}

	startPrice, err := EthToWei("startPriceEth", o.StartPriceEth)
	if err != nil {
		return nil, err
	}
	endPrice, err := EthToWei("endPriceEth", o.EndPriceEth)
	if err != nil {
		return nil, err
	}
	startTime, err := MillisToSeconds("startTimeMs", o.StartTimeMs)
	if err != nil {
		return nil, err
	}
	endTime, err := MillisToSeconds("endTimeMs", o.EndTimeMs)
	if err != nil {
		return nil, err
	}
	if o.StartTimeMs > o.EndTimeMs {
		return nil, malformed("endTimeMs", "before startTimeMs", nil)
	}
	nonce, err := ParseUint256("nonce", o.Nonce)
	if err != nil {
		return nil, err
	}

	return &Constraints{
		NumItems:       big.NewInt(int64(o.NumItems)),
		StartPriceWei:  startPrice,
		EndPriceWei:    endPrice,
		StartTimeSec:   startTime,
		EndTimeSec:     endTime,
		MinBpsToSeller: big.NewInt(int64(o.MinBpsToSeller)),
		Nonce:          nonce,
	}, nil
}

// HashConstraints keccak256(abi.encodePacked(uint256[] constraints))
func HashConstraints(c *Constraints) common.Hash {
	words := c.Words()
	buf := make([]byte, 0, len(words)*common.HashLength)
	for _, w := range words {
		buf = append(buf, math.PaddedBigBytes(w, common.HashLength)...)
	}
	return crypto.Keccak256Hash(buf)
}

// HashOrder 计算订单结构体哈希 (不含签名, 不含 domain)
// 使用 o.Signer 作为 maker, o.NumItems 原样参与哈希, 归一化由 Identity 负责
func HashOrder(o *model.Order) (common.Hash, error) {
	signer, err := ParseAddress("signer", o.Signer)
	if err != nil {
		return NullDigest, err
	}
	constraints, err := BuildConstraints(o)
	if err != nil {
		return NullDigest, err
	}
	itemsHash, err := HashOrderItems(o.Nfts)
	if err != nil {
		return NullDigest, err
	}
	execHash, err := HashExecParams(o.ExecParams.ComplicationAddress, o.ExecParams.CurrencyAddress)
	if err != nil {
		return NullDigest, err
	}
	extraHash, err := HashExtraParams(o.ExtraParams.Buyer)
	if err != nil {
		return NullDigest, err
	}

	encoded, err := orderArgs.Pack(
		[32]byte(OrderTypeHash),
		o.IsSellOrder,
		signer,
		[32]byte(HashConstraints(constraints)),
		[32]byte(itemsHash),
		[32]byte(execHash),
		[32]byte(extraHash),
	)
	if err != nil {
		return NullDigest, malformed("order", "abi encode failed", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// EthToWei 按 18 位定点把 ETH 金额换算为 wei
// 非数字、负数、精度超过 1 wei 的金额都视为格式错误
func EthToWei(field string, amount model.EthAmount) (*big.Int, error) {
	raw := strings.TrimSpace(amount.String())
	if raw == "" {
		return nil, malformed(field, "empty price", nil)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, malformed(field, "not a decimal number", err)
	}
	if d.IsNegative() {
		return nil, malformed(field, "negative price", nil)
	}

	wei := d.Shift(EthDecimals)
	if !wei.IsInteger() {
		return nil, malformed(field, "more than 18 decimals", nil)
	}
	out := wei.BigInt()
	if out.BitLen() > 256 {
		return nil, malformed(field, "exceeds uint256", nil)
	}
	return out, nil
}

// MillisToSeconds 毫秒向下取整为秒
func MillisToSeconds(field string, ms int64) (*big.Int, error) {
	if ms < 0 {
		return nil, malformed(field, "negative time", nil)
	}
	return big.NewInt(ms / 1000), nil
}

// ParseUint256 解析十进制 uint256 字符串
func ParseUint256(field, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, malformed(field, "empty value", nil)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, malformed(field, "not a decimal integer", nil)
	}
	if n.Sign() < 0 {
		return nil, malformed(field, "negative value", nil)
	}
	if n.BitLen() > 256 {
		return nil, malformed(field, "exceeds uint256", nil)
	}
	return n, nil
}

// ParseAddress 解析 0x 开头的 20 字节地址
func ParseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) || !strings.HasPrefix(strings.ToLower(s), model.HexPrefix) {
		return common.Address{}, malformed(field, "invalid address "+s, nil)
	}
	return common.HexToAddress(s), nil
}
