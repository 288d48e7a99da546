// Package health 提供依赖健康检查与聚合报告。
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Checker 定义健康检查函数原型。
type Checker func(ctx context.Context) error

// 报告中的状态值。
const (
	StatusUp   = "up"
	StatusDown = "down"
)

// Report 是一次聚合检查的结果。
type Report struct {
	Service string            `json:"service"`
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
}

// Healthy 报告全部检查是否通过。
func (r Report) Healthy() bool {
	return r.Status == StatusUp
}

// Service 聚合多个具名检查。
type Service struct {
	name    string
	timeout time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewService 创建检查聚合器，timeout 为单次检查的上限，<= 0 时为 2s。
func NewService(name string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{name: name, timeout: timeout, checkers: make(map[string]Checker)}
}

// Register 注册具名检查，同名覆盖。
func (s *Service) Register(name string, c Checker) {
	s.mu.Lock()
	s.checkers[name] = c
	s.mu.Unlock()
}

// Names 返回已注册的检查名称。
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.checkers))
	for n := range s.checkers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Check 并发执行全部检查。
func (s *Service) Check(ctx context.Context) Report {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	for n, c := range s.checkers {
		checkers[n] = c
	}
	s.mu.RUnlock()

	report := Report{Service: s.name, Status: StatusUp, Checks: make(map[string]string, len(checkers))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, c := range checkers {
		wg.Go(func() {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			result := StatusUp
			if err := c(cctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			report.Checks[name] = result
			if result != StatusUp {
				report.Status = StatusDown
			}
			mu.Unlock()
		})
	}
	wg.Wait()
	return report
}

// HTTPChecker 返回 HTTP 依赖健康检查函数。
func HTTPChecker(url string) Checker {
	return func(ctx context.Context) error {
		if url == "" {
			return errors.New("health check url is empty")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("http health check status: %d", resp.StatusCode)
		}
		return nil
	}
}
