package tracking

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	alphabet           = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	randomLength       = 6
	DefaultPrefix      = "CMP"
	DefaultMaxAttempts = 5
)

// ErrGenerationExhausted signals that no unique tracking number could be
// produced within the attempt bound. It is an operator problem, not a user one.
var ErrGenerationExhausted = errors.New("tracking number generation exhausted")

// CandidateGenerator produces tracking number candidates.
type CandidateGenerator interface {
	Generate() (string, error)
}

// ExistenceChecker reports whether a tracking number is already taken.
type ExistenceChecker interface {
	ExistsByTrackingNumber(ctx context.Context, code string) (bool, error)
}

// RandomGenerator builds PREFIX-YYYYMMDD-XXXXXX codes from crypto/rand.
type RandomGenerator struct {
	prefix string
	now    func() time.Time
}

// NewRandomGenerator returns a generator using the given prefix.
func NewRandomGenerator(prefix string) *RandomGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RandomGenerator{prefix: prefix, now: time.Now}
}

func (g *RandomGenerator) Generate() (string, error) {
	suffix, err := randomString(randomLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", g.prefix, g.now().UTC().Format("20060102"), suffix), nil
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// Allocator draws candidates until one is unused in the store.
type Allocator struct {
	generator   CandidateGenerator
	store       ExistenceChecker
	maxAttempts int
	logger      *zap.Logger
	onCollision func()
}

// NewAllocator builds an allocator. maxAttempts <= 0 falls back to DefaultMaxAttempts.
func NewAllocator(generator CandidateGenerator, store ExistenceChecker, maxAttempts int, logger *zap.Logger) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{generator: generator, store: store, maxAttempts: maxAttempts, logger: logger}
}

// OnCollision registers a hook invoked for every colliding candidate.
func (a *Allocator) OnCollision(fn func()) {
	a.onCollision = fn
}

// Allocate returns a tracking number not present in the store.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		code, err := a.generator.Generate()
		if err != nil {
			return "", err
		}
		exists, err := a.store.ExistsByTrackingNumber(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check tracking number: %w", err)
		}
		if !exists {
			return code, nil
		}
		if a.onCollision != nil {
			a.onCollision()
		}
		a.logger.Warn("tracking number collision",
			zap.String("tracking_number", code),
			zap.Int("attempt", attempt))
	}
	return "", fmt.Errorf("%w after %d attempts", ErrGenerationExhausted, a.maxAttempts)
}
