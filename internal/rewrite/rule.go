package rewrite

import (
	"errors"
	"fmt"
	"net"
	"strings"

	mdns "github.com/miekg/dns"
)

var (
	// ErrDuplicate 相同的主机记录与记录值已存在
	ErrDuplicate = errors.New("已经存在")
	// ErrNotFound 目标规则不存在
	ErrNotFound = errors.New("target rule not found")
	// ErrInvalid 规则内容不合法
	ErrInvalid = errors.New("invalid rewrite rule")
)

// Rule 单条 DNS 重写规则：主机记录 -> 记录值
type Rule struct {
	// Domain 域名或 "*." 开头的通配域名
	Domain string `json:"domain" yaml:"domain"`
	// Answer IP 地址、规范名，或特殊值 "A" / "AAAA"
	Answer string `json:"answer" yaml:"answer"`
}

// Normalize 去空白、域名转小写并去掉末尾的点
func (r *Rule) Normalize() error {
	if r == nil {
		return fmt.Errorf("%w: nil rule", ErrInvalid)
	}

	r.Domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(r.Domain)), ".")
	r.Answer = strings.TrimSpace(r.Answer)

	if r.Domain == "" || r.Answer == "" {
		return fmt.Errorf("%w: domain and answer are required", ErrInvalid)
	}
	if r.Domain == "*" || strings.Contains(strings.TrimPrefix(r.Domain, "*."), "*") {
		return fmt.Errorf("%w: bad wildcard %q", ErrInvalid, r.Domain)
	}

	return nil
}

// Equal 两条规则内容完全相同
func (r Rule) Equal(other Rule) bool {
	return r == other
}

// Contains 主机记录或记录值包含 param（不区分大小写）
func (r Rule) Contains(param string) bool {
	if param == "" {
		return true
	}
	p := strings.ToLower(param)

	return strings.Contains(strings.ToLower(r.Domain), p) ||
		strings.Contains(strings.ToLower(r.Answer), p)
}

// IsWildcard 是否为通配规则
func (r Rule) IsWildcard() bool {
	return strings.HasPrefix(r.Domain, "*.")
}

// AnswerType 返回记录值对应的记录类型。
// 特殊值 "A" / "AAAA" 表示对该类型保留上游结果，此时 exception 为 true。
func (r Rule) AnswerType() (qtype uint16, exception bool) {
	switch r.Answer {
	case "A":
		return mdns.TypeA, true
	case "AAAA":
		return mdns.TypeAAAA, true
	}

	ip := net.ParseIP(r.Answer)
	switch {
	case ip == nil:
		return mdns.TypeCNAME, false
	case ip.To4() != nil:
		return mdns.TypeA, false
	default:
		return mdns.TypeAAAA, false
	}
}

func (r Rule) String() string {
	return r.Domain + " -> " + r.Answer
}
