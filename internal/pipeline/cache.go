package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
)

// answerCache is a bounded per-process cache of completed answers. Eviction
// is oldest-first; a restart empties it, which is the intended
// invalidation.
type answerCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]model.Answer
	order   []string
}

func newAnswerCache(max int) *answerCache {
	if max <= 0 {
		max = 100
	}
	return &answerCache{
		max:     max,
		entries: make(map[string]model.Answer, max),
	}
}

func (c *answerCache) get(key string) (model.Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ans, ok := c.entries[key]
	return ans, ok
}

func (c *answerCache) put(key string, ans model.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = ans

	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *answerCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]model.Answer, c.max)
	c.order = nil
}

func (c *answerCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey derives a stable key from the question text and its explicit
// context.
func cacheKey(q model.Question) string {
	var b strings.Builder
	b.WriteString(q.Text)
	if q.Context != nil {
		fmt.Fprintf(&b, "|%s|%d|%s", strings.Join(q.Context.Companies, ","), q.Context.Year, q.Context.DocType)
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
