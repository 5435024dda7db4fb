package dns

import (
	"context"
	"fmt"
	"net"
	"time"

	mdns "github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

// ListenAndServe 在 addr 上同时监听 UDP 和 TCP，ctx 结束时关闭
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("监听 UDP 失败: %w", err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		pc.Close()
		return fmt.Errorf("监听 TCP 失败: %w", err)
	}

	return s.Serve(ctx, pc, ln)
}

// Serve 在已建立的连接上提供服务
func (s *Server) Serve(ctx context.Context, pc net.PacketConn, ln net.Listener) error {
	udp := &mdns.Server{Handler: s, PacketConn: pc}
	tcp := &mdns.Server{Handler: s, Listener: ln}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("addr", pc.LocalAddr().String()).Msg("dns: udp listening")
		if err := udp.ActivateAndServe(); err != nil {
			return fmt.Errorf("udp serve err: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("dns: tcp listening")
		if err := tcp.ActivateAndServe(); err != nil {
			return fmt.Errorf("tcp serve err: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = udp.ShutdownContext(shutdownCtx)
		_ = tcp.ShutdownContext(shutdownCtx)
		// 尚未进入服务循环的实例不响应 Shutdown，直接关闭连接
		pc.Close()
		ln.Close()
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
