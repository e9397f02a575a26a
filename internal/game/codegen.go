package game

import (
	"math/rand"
	"sync"

	"example.com/pegboard/internal/cryptorand"
)

// Generator draws secret codes from a swappable random source.
type Generator struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewGenerator(src rand.Source) *Generator {
	return &Generator{r: rand.New(src)}
}

// Code draws one color per column, independently and with replacement.
func (g *Generator) Code() Code {
	g.mu.Lock()
	defer g.mu.Unlock()

	var c Code
	for i := range c {
		c[i] = Palette[g.r.Intn(len(Palette))]
	}
	return c
}

var defaultGenerator = NewGenerator(cryptorand.NewSource())

// GenerateCode returns a fresh secret from a crypto-backed source.
func GenerateCode() Code {
	return defaultGenerator.Code()
}
