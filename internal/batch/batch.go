// Package batch replays a file of utterances through the skill, one
// session per utterance.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/manash/stability-skill/internal/host"
	"github.com/manash/stability-skill/internal/skill"
)

var (
	ErrNoMatch = errors.New("not a drawing request")
	ErrNoImage = errors.New("no image was drawn")
)

const DefaultLang = "en-us"

// Turner handles an utterance and ends sessions.
type Turner interface {
	Turn(ctx context.Context, sess host.Session, utterance string) skill.TurnResult
	StopSession(sess host.Session) bool
}

type Options struct {
	Parallel int
	// PerMinute caps how many turns start per minute. Zero means no cap.
	PerMinute   float64
	Lang        string
	StopOnError bool
}

type Result struct {
	Index     int
	Utterance string
	SessionID string
	Query     string
	Path      string
	Error     error
	Duration  time.Duration
}

type Processor struct {
	turner Turner
	out    io.Writer
	err    io.Writer
	outMu  sync.Mutex
	newID  func() string
}

func NewProcessor(turner Turner, out, errOut io.Writer) *Processor {
	return &Processor{
		turner: turner,
		out:    out,
		err:    errOut,
		newID:  uuid.NewString,
	}
}

func (p *Processor) printf(format string, args ...any) {
	p.outMu.Lock()
	fmt.Fprintf(p.out, format, args...)
	p.outMu.Unlock()
}

func (p *Processor) errorf(format string, args ...any) {
	p.outMu.Lock()
	fmt.Fprintf(p.err, format, args...)
	p.outMu.Unlock()
}

func newLimiter(perMinute float64) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), 1)
}

// Process runs every item and returns results in input order. With
// StopOnError the first failed item cancels the rest.
func (p *Processor) Process(ctx context.Context, items []Item, opts *Options) ([]Result, error) {
	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = Result{Index: item.Index, Utterance: item.Utterance}
	}

	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 1
	}
	limiter := newLimiter(opts.PerMinute)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	total := len(items)
	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				results[i].Error = err
				return nil
			}
			results[i] = p.processItem(gctx, item, opts, i+1, total)
			if opts.StopOnError && results[i].Error != nil {
				return fmt.Errorf("stopped at item %d: %w", item.Index, results[i].Error)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func (p *Processor) processItem(ctx context.Context, item Item, opts *Options, current, total int) Result {
	start := time.Now()
	lang := item.Lang
	if lang == "" {
		lang = opts.Lang
	}
	if lang == "" {
		lang = DefaultLang
	}

	sess := host.Session{ID: p.newID(), Lang: lang}
	defer p.turner.StopSession(sess)

	result := Result{Index: item.Index, Utterance: item.Utterance, SessionID: sess.ID}
	p.printf("[%d/%d] %q\n", current, total, truncate(item.Utterance, 50))

	turn := p.turner.Turn(ctx, sess, item.Utterance)
	result.Query = turn.Query
	result.Path = turn.Image
	result.Duration = time.Since(start)

	switch {
	case !turn.Matched:
		result.Error = ErrNoMatch
	case turn.Image == "":
		result.Error = ErrNoImage
	}

	if result.Error != nil {
		p.errorf("       Error: %v\n", result.Error)
	} else {
		p.printf("       Saved: %s\n", result.Path)
	}
	return result
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func (p *Processor) PrintSummary(results []Result) {
	var successful int
	var failed []Result
	for _, r := range results {
		if r.Error != nil {
			failed = append(failed, r)
		} else if r.Path != "" {
			successful++
		}
	}

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "Summary:")
	fmt.Fprintf(p.out, "  Drawn: %d/%d\n", successful, len(results))
	if len(failed) == 0 {
		return
	}

	fmt.Fprintf(p.out, "  Failed: %d\n", len(failed))
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "Errors:")
	for _, r := range failed {
		fmt.Fprintf(p.out, "  [%d] %q: %v\n", r.Index, truncate(r.Utterance, 40), r.Error)
	}
}
