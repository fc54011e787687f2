package feed

import (
	"math/big"
	"sync"
)

// TokenInterner token id 驻留池。
//
// 同一个 token 的 32 字节资产 ID 在事件流里会反复出现，
// 十进制转换只在首次见到时做一次，之后所有事件共享同一个字符串。
// 池只增不减，进程生命周期内常驻。
type TokenInterner struct {
	mu sync.Mutex
	m  map[[32]byte]string
}

// NewTokenInterner 创建驻留池
func NewTokenInterner() *TokenInterner {
	return &TokenInterner{m: make(map[[32]byte]string)}
}

// Intern 返回资产 ID 的十进制字符串表示，保证相同输入返回同一引用
func (ti *TokenInterner) Intern(raw [32]byte) string {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	if s, ok := ti.m[raw]; ok {
		return s
	}
	s := new(big.Int).SetBytes(raw[:]).String()
	ti.m[raw] = s
	return s
}

// Len 返回池中已驻留的 token 数
func (ti *TokenInterner) Len() int {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	return len(ti.m)
}
