package dns

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	mdns "github.com/miekg/dns"
	"github.com/rs/zerolog"

	"github.com/winspan/rewritedns/internal/rewrite"
)

// Rewriter 按重写规则解析域名
type Rewriter interface {
	Match(host string, qtype uint16) rewrite.Result
}

// Options DNS 服务器参数
type Options struct {
	Upstreams []string
	Timeout   time.Duration
	// TTL 重写应答的 TTL（秒）
	TTL       uint32
	CacheSize int
	CacheTTL  time.Duration
}

// Server DNS服务器
type Server struct {
	rules     Rewriter
	upstreams []string
	timeout   time.Duration
	ttl       uint32
	log       zerolog.Logger

	// 上游应答缓存；重写应答不进缓存，规则变更立即生效
	cache *expirable.LRU[string, *mdns.Msg]

	// 上游健康状态（简单熔断）
	healthMu       sync.Mutex
	upstreamHealth map[string]*healthState
}

// NewServer 创建 DNS 服务器
func NewServer(rules Rewriter, opts Options, log zerolog.Logger) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	return &Server{
		rules:          rules,
		upstreams:      opts.Upstreams,
		timeout:        opts.Timeout,
		ttl:            opts.TTL,
		log:            log,
		cache:          expirable.NewLRU[string, *mdns.Msg](opts.CacheSize, nil, opts.CacheTTL),
		upstreamHealth: make(map[string]*healthState),
	}
}

// ServeDNS 实现 mdns.Handler
func (s *Server) ServeDNS(w mdns.ResponseWriter, r *mdns.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*s.timeout)
	defer cancel()

	resp, err := s.Resolve(ctx, r)
	if err != nil {
		s.log.Debug().Err(err).Msg("dns: resolve failed")
		s.writeServFail(w, r)
		return
	}
	_ = w.WriteMsg(resp)
}

// Resolve 解析一个查询：命中重写规则的在本地应答，其余转发上游
func (s *Server) Resolve(ctx context.Context, req *mdns.Msg) (*mdns.Msg, error) {
	if len(req.Question) == 0 {
		m := new(mdns.Msg)
		m.SetRcode(req, mdns.RcodeFormatError)
		return m, nil
	}

	q := req.Question[0]
	name := strings.TrimSuffix(strings.ToLower(q.Name), ".")

	if q.Qclass == mdns.ClassINET && rewritable(q.Qtype) {
		res := s.rules.Match(name, q.Qtype)
		// 例外规则落在查询名本身时原样转发；经过 CNAME 时由 rewriteReply 转发规范名
		if res.KeepUpstream && res.CanonName() == "" {
			queryCounter.WithLabelValues("exception").Inc()
		} else if res.Matched {
			queryCounter.WithLabelValues("rewrite").Inc()
			return s.rewriteReply(ctx, req, res)
		}
	}

	key := cacheKey(name, q.Qtype)
	if cached, ok := s.cache.Get(key); ok {
		queryCounter.WithLabelValues("cache").Inc()
		resp := cached.Copy()
		resp.Id = req.Id
		return resp, nil
	}

	resp, err := s.forward(ctx, req)
	if err != nil {
		return nil, err
	}
	queryCounter.WithLabelValues("upstream").Inc()

	if resp.Rcode == mdns.RcodeSuccess || resp.Rcode == mdns.RcodeNameError {
		s.cache.Add(key, resp.Copy())
	}
	return resp, nil
}

// rewriteReply 组装 CNAME 链与地址记录
func (s *Server) rewriteReply(ctx context.Context, req *mdns.Msg, res rewrite.Result) (*mdns.Msg, error) {
	q := req.Question[0]
	m := new(mdns.Msg)
	m.SetReply(req)
	m.RecursionAvailable = true

	owner := q.Name
	for _, c := range res.CNAMEs {
		target := mdns.Fqdn(c)
		m.Answer = append(m.Answer, &mdns.CNAME{
			Hdr:    s.hdr(owner, mdns.TypeCNAME),
			Target: target,
		})
		owner = target
	}

	for _, ip := range res.IPs {
		switch q.Qtype {
		case mdns.TypeA:
			m.Answer = append(m.Answer, &mdns.A{Hdr: s.hdr(owner, mdns.TypeA), A: ip.To4()})
		case mdns.TypeAAAA:
			m.Answer = append(m.Answer, &mdns.AAAA{Hdr: s.hdr(owner, mdns.TypeAAAA), AAAA: ip})
		}
	}

	canon := res.CanonName()
	if len(res.IPs) > 0 || canon == "" || q.Qtype == mdns.TypeCNAME {
		return m, nil
	}

	// 规范名不在本地规则里，或命中例外规则时交给上游解析
	if !res.KeepUpstream && s.rules.Match(canon, q.Qtype).Matched {
		return m, nil
	}

	sub := new(mdns.Msg)
	sub.SetQuestion(mdns.Fqdn(canon), q.Qtype)
	sub.RecursionDesired = true

	up, err := s.forward(ctx, sub)
	if err != nil {
		s.log.Warn().Err(err).Str("cname", canon).Msg("dns: resolve canonical name failed")
		return m, nil
	}
	m.Answer = append(m.Answer, up.Answer...)
	return m, nil
}

func (s *Server) hdr(name string, rrtype uint16) mdns.RR_Header {
	return mdns.RR_Header{Name: name, Rrtype: rrtype, Class: mdns.ClassINET, Ttl: s.ttl}
}

func rewritable(qtype uint16) bool {
	return qtype == mdns.TypeA || qtype == mdns.TypeAAAA || qtype == mdns.TypeCNAME
}

func cacheKey(name string, qtype uint16) string {
	return name + ":" + mdns.TypeToString[qtype]
}

// ClearCache 清空上游应答缓存
func (s *Server) ClearCache() {
	s.cache.Purge()
}

// CacheLen 当前缓存条目数
func (s *Server) CacheLen() int {
	return s.cache.Len()
}

func (s *Server) writeServFail(w mdns.ResponseWriter, req *mdns.Msg) {
	m := new(mdns.Msg)
	m.SetRcode(req, mdns.RcodeServerFailure)
	_ = w.WriteMsg(m)
}

func (s *Server) forward(ctx context.Context, req *mdns.Msg) (*mdns.Msg, error) {
	var lastErr error
	for _, addr := range s.upstreams {
		netw, endpoint := upstreamDialParams(addr)
		if !s.isUpstreamAvailable(netw, endpoint) {
			upstreamSkippedUnhealthy.WithLabelValues(endpoint).Inc()
			continue
		}
		c := &mdns.Client{Net: netw, Timeout: s.timeout}
		start := time.Now()
		resp, _, err := c.ExchangeContext(ctx, req, endpoint)
		upstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err == nil && resp != nil {
			s.recordSuccess(netw, endpoint)
			return resp, nil
		}
		s.recordFailure(netw, endpoint)
		upstreamFailures.WithLabelValues(endpoint).Inc()
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no upstream")
	}
	return nil, lastErr
}

// upstreamDialParams 解析上游地址，tcp:// 与 tls:// 前缀走 TCP（不实现 DoT/DoH 握手）
func upstreamDialParams(address string) (network, endpoint string) {
	for _, p := range []string{"tcp://", "tls://"} {
		if strings.HasPrefix(address, p) {
			return "tcp", strings.TrimPrefix(address, p)
		}
	}
	return "udp", strings.TrimPrefix(address, "udp://")
}

type healthState struct {
	failures     int
	trippedUntil time.Time
}

// 简单熔断：连续失败 N 次后在 M 时间内跳过该上游
const (
	circuitFailThreshold = 3
	circuitOpenDuration  = 30 * time.Second
)

func (s *Server) isUpstreamAvailable(network, endpoint string) bool {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	st := s.upstreamHealth[network+"|"+endpoint]
	return st == nil || !time.Now().Before(st.trippedUntil)
}

func (s *Server) recordFailure(network, endpoint string) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	key := network + "|" + endpoint
	st := s.upstreamHealth[key]
	if st == nil {
		st = &healthState{}
		s.upstreamHealth[key] = st
	}
	st.failures++
	if st.failures >= circuitFailThreshold {
		st.trippedUntil = time.Now().Add(circuitOpenDuration)
		st.failures = 0
		upstreamCircuitOpened.WithLabelValues(endpoint).Inc()
		s.log.Warn().Str("upstream", endpoint).Dur("open", circuitOpenDuration).Msg("dns: upstream circuit opened")
	}
}

func (s *Server) recordSuccess(network, endpoint string) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	if st := s.upstreamHealth[network+"|"+endpoint]; st != nil {
		st.failures = 0
		st.trippedUntil = time.Time{}
	}
}
