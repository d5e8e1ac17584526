package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Check is one named readiness probe, such as a database ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Result struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type Report struct {
	OK     bool     `json:"ok"`
	Checks []Result `json:"checks"`
}

// Checker runs every registered check concurrently with a shared deadline.
type Checker struct {
	checks  []Check
	timeout time.Duration
}

func NewChecker(timeout time.Duration, checks ...Check) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{checks: checks, timeout: timeout}
}

func (c *Checker) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make([]Result, len(c.checks))
	var mu sync.Mutex
	ok := true

	var g errgroup.Group
	for i, chk := range c.checks {
		g.Go(func() error {
			r := Result{Name: chk.Name, OK: true}
			if err := chk.Fn(ctx); err != nil {
				r.OK = false
				r.Error = err.Error()
				mu.Lock()
				ok = false
				mu.Unlock()
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	return Report{OK: ok, Checks: results}
}

// Names lists the registered checks in order.
func (c *Checker) Names() []string {
	out := make([]string, 0, len(c.checks))
	for _, chk := range c.checks {
		out = append(out, chk.Name)
	}
	return out
}
