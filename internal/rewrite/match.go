package rewrite

import (
	"net"
	"strings"

	mdns "github.com/miekg/dns"
)

// maxCNAMEHops CNAME 链的最大跟随深度
const maxCNAMEHops = 10

// Result 一次查询的重写结果
type Result struct {
	// Matched 是否命中任何重写规则
	Matched bool
	// CNAMEs 依次跟随的规范名
	CNAMEs []string
	// IPs 与查询类型一致的地址
	IPs []net.IP
	// KeepUpstream 命中 "A"/"AAAA" 例外规则，交给上游解析
	KeepUpstream bool
}

// CanonName 最终的规范名；未发生 CNAME 重写时为空
func (r Result) CanonName() string {
	if len(r.CNAMEs) == 0 {
		return ""
	}
	return r.CNAMEs[len(r.CNAMEs)-1]
}

// Match 按规则解析 host 的 qtype 查询。
// 精确匹配优先于通配，通配中越具体的越优先；CNAME 会被继续跟随。
func (s *Store) Match(host string, qtype uint16) Result {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")

	s.mu.RLock()
	defer s.mu.RUnlock()

	var res Result
	visited := map[string]struct{}{host: {}}

	for hops := 0; ; hops++ {
		rules := s.matchingLocked(host)
		if len(rules) == 0 {
			break
		}

		if cname, ok := firstCNAME(rules); ok {
			if cname == host {
				// "*.example.com -> sub.example.com" 命中自身时视为例外
				break
			}
			if _, seen := visited[cname]; seen || hops >= maxCNAMEHops {
				s.log.Info().Str("host", host).Str("cname", cname).Msg("rewrite: cname loop")
				return Result{}
			}

			visited[cname] = struct{}{}
			res.CNAMEs = append(res.CNAMEs, cname)
			host = cname
			continue
		}

		res.Matched = true
		for _, r := range rules {
			t, exception := r.AnswerType()
			if t != qtype {
				continue
			}
			if exception {
				res.KeepUpstream = true
				continue
			}
			res.IPs = append(res.IPs, net.ParseIP(r.Answer))
		}
		if res.KeepUpstream && len(res.IPs) > 0 {
			res.KeepUpstream = false
		}
		break
	}

	if len(res.CNAMEs) > 0 {
		res.Matched = true
	}

	return res
}

// matchingLocked 返回适用于 host 的规则：精确匹配，否则最具体的通配
func (s *Store) matchingLocked(host string) []Rule {
	var exact, wild []Rule
	best := 0

	for _, r := range s.rules {
		if r.Domain == host {
			exact = append(exact, r)
			continue
		}
		if !r.IsWildcard() || !strings.HasSuffix(host, r.Domain[1:]) {
			continue
		}

		switch n := len(r.Domain); {
		case n > best:
			best = n
			wild = []Rule{r}
		case n == best:
			wild = append(wild, r)
		}
	}

	if len(exact) > 0 {
		return exact
	}
	return wild
}

func firstCNAME(rules []Rule) (string, bool) {
	for _, r := range rules {
		if t, _ := r.AnswerType(); t == mdns.TypeCNAME {
			return strings.TrimSuffix(strings.ToLower(r.Answer), "."), true
		}
	}
	return "", false
}
