package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk/internal/repository"
)

const (
	ticketNumberPrefix = "TKT"
	maxTicketSequence  = 9999
)

// NumberGenerator hands out TKT-<year>-<seq> numbers. The sequence for a
// year is seeded from the highest stored number the first time that year
// is seen and then incremented in memory.
type NumberGenerator struct {
	tickets repository.TicketRepository
	mu      sync.Mutex
	next    map[int]int
}

// NewNumberGenerator builds a generator over the ticket store.
func NewNumberGenerator(tickets repository.TicketRepository) *NumberGenerator {
	return &NumberGenerator{tickets: tickets, next: make(map[int]int)}
}

// Next returns the next number for the UTC year of now.
func (g *NumberGenerator) Next(ctx context.Context, now time.Time) (string, error) {
	year := now.UTC().Year()
	prefix := yearPrefix(year)

	g.mu.Lock()
	defer g.mu.Unlock()

	seq, ok := g.next[year]
	if !ok {
		max, err := g.tickets.MaxNumber(ctx, prefix)
		if err != nil {
			return "", fmt.Errorf("load ticket sequence: %w", err)
		}
		seq = 1
		if max != "" {
			last, err := strconv.Atoi(strings.TrimPrefix(max, prefix))
			if err != nil {
				return "", fmt.Errorf("parse ticket number %q: %w", max, err)
			}
			seq = last + 1
		}
	}
	if seq > maxTicketSequence {
		return "", fmt.Errorf("ticket sequence for %d exhausted", year)
	}

	g.next[year] = seq + 1
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

// Forget drops the cached sequence for a year so the next call reseeds
// from the store.
func (g *NumberGenerator) Forget(year int) {
	g.mu.Lock()
	delete(g.next, year)
	g.mu.Unlock()
}

func yearPrefix(year int) string {
	return fmt.Sprintf("%s-%d-", ticketNumberPrefix, year)
}
