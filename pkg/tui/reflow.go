package tui

import (
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
)

// wrapWidth word-wraps s into rows no wider than width display columns,
// counting double-width runes (CJK, emoji) via go-runewidth rather than
// rune count, so a line of wide glyphs does not overflow the viewport.
func wrapWidth(s string, width int) []string {
	if width <= 0 {
		width = 1
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var rows []string
	var row strings.Builder
	rowWidth := 0

	flush := func() {
		rows = append(rows, row.String())
		row.Reset()
		rowWidth = 0
	}

	for _, word := range words {
		wordWidth := runewidth.StringWidth(word)
		if wordWidth > width {
			// A single word longer than the viewport: hard-break it.
			if rowWidth > 0 {
				flush()
			}
			for _, seg := range hardBreak(word, width) {
				rows = append(rows, seg)
			}
			continue
		}
		spacer := 0
		if rowWidth > 0 {
			spacer = 1
		}
		if rowWidth+spacer+wordWidth > width {
			flush()
			row.WriteString(word)
			rowWidth = wordWidth
			continue
		}
		if spacer == 1 {
			row.WriteString(" ")
		}
		row.WriteString(word)
		rowWidth += spacer + wordWidth
	}
	if rowWidth > 0 || len(rows) == 0 {
		flush()
	}
	return rows
}

// hardBreak splits a single over-long word on display-width boundaries.
func hardBreak(word string, width int) []string {
	var segs []string
	var cur strings.Builder
	curWidth := 0
	for _, r := range word {
		rw := runewidth.RuneWidth(r)
		if curWidth+rw > width && curWidth > 0 {
			segs = append(segs, cur.String())
			cur.Reset()
			curWidth = 0
		}
		cur.WriteRune(r)
		curWidth += rw
	}
	if cur.Len() > 0 {
		segs = append(segs, cur.String())
	}
	return segs
}

// wrapCacheKey identifies one memoized wrap operation.
type wrapCacheKey struct {
	text  string
	width int
}

// reflowCache memoizes per-(content,width) wrap results. Once it grows past
// a cap it clears half the cache rather than maintaining a precise LRU.
type reflowCache struct {
	mu    sync.Mutex
	cache map[wrapCacheKey][]string
	cap   int
}

func newReflowCache() *reflowCache {
	return &reflowCache{cache: make(map[wrapCacheKey][]string), cap: 2000}
}

func (c *reflowCache) wrap(text string, width int, compute func() []string) []string {
	key := wrapCacheKey{text: text, width: width}

	c.mu.Lock()
	if rows, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return rows
	}
	c.mu.Unlock()

	rows := compute()

	c.mu.Lock()
	if len(c.cache) >= c.cap {
		half := make(map[wrapCacheKey][]string, c.cap/2)
		i := 0
		for k, v := range c.cache {
			if i >= len(c.cache)/2 {
				half[k] = v
			}
			i++
		}
		c.cache = half
	}
	c.cache[key] = rows
	c.mu.Unlock()

	return rows
}

func (c *reflowCache) invalidate() {
	c.mu.Lock()
	c.cache = make(map[wrapCacheKey][]string, c.cap/4)
	c.mu.Unlock()
}
