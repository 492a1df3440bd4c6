package utils

import (
	"regexp"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	// validatorM 存储自定义的验证器函数映射
	// key: 验证规则名称 ("address", "uint256")
	validatorM map[string]validator.Func
	// patternM 存储正则表达式模式映射
	patternM map[string]*regexp.Regexp

	validate     *validator.Validate
	validateOnce sync.Once
)

func init() {
	patternM = map[string]*regexp.Regexp{
		// 以太坊地址: 0x开头, 后接40位16进制字符
		"address": regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`),
		// 十进制无符号整数 (tokenId / numTokens / nonce)
		"uint256": regexp.MustCompile(`^[0-9]{1,78}$`),
	}
	validatorM = map[string]validator.Func{
		"address": regexpValidator,
		"uint256": regexpValidator,
	}
}

// regexpValidator 根据 tag 名称查找对应正则并匹配
var regexpValidator validator.Func = func(fl validator.FieldLevel) bool {
	key, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	pattern, ok := patternM[fl.GetTag()]
	if !ok {
		return false
	}
	return pattern.MatchString(key)
}

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		for tag, fn := range validatorM {
			if err := validate.RegisterValidation(tag, fn); err != nil {
				panic(err)
			}
		}
	})
	return validate
}

// Verify 按结构体上的 validate tag 校验参数
func Verify(v interface{}) error {
	if err := getValidator().Struct(v); err != nil {
		return errors.Wrap(err, "invalid params")
	}
	return nil
}

// IsAddress 判断字符串是否为合法的以太坊地址
func IsAddress(address string) bool {
	return patternM["address"].MatchString(address)
}

// ToValidateAddress 将以太坊地址转换为 EIP-55 校验和格式
func ToValidateAddress(address string) string {
	if !strings.HasPrefix(strings.ToLower(address), "0x") {
		address = "0x" + address
	}
	return common.HexToAddress(address).Hex()
}
