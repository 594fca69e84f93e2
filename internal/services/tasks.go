package services

import (
	"errors"
	"math/rand"
	"sort"
	"time"
)

var ErrInvalidAction = errors.New("invalid action")

// Task is the player-side mechanic of a battle. Sessions feed it inputs and
// stop the race once it completes or fails.
type Task interface {
	Act(cell int) error
	Completed() bool
	Failed() bool
	// Penalty is extra time added to the player's elapsed time.
	Penalty() time.Duration
	// View is the client-safe task state. Hidden cells stay hidden.
	View() map[string]interface{}
}

// counterTask covers the tap games: every action counts towards the target.
type counterTask struct {
	noun   string
	target int
	count  int
}

func newCounterTask(noun string, target int) Task {
	return &counterTask{noun: noun, target: target}
}

func (t *counterTask) Act(int) error {
	if t.Completed() {
		return ErrInvalidAction
	}
	t.count++
	return nil
}

func (t *counterTask) Completed() bool { return t.count >= t.target }
func (t *counterTask) Failed() bool { return false }
func (t *counterTask) Penalty() time.Duration { return 0 }

func (t *counterTask) View() map[string]interface{} {
	return map[string]interface{}{
		"kind":   t.noun,
		"count":  t.count,
		"target": t.target,
	}
}

// autoTask never needs input; the session finishes it on a timer.
type autoTask struct{}

func (autoTask) Act(int) error { return ErrInvalidAction }
func (autoTask) Completed() bool { return false }
func (autoTask) Failed() bool { return false }
func (autoTask) Penalty() time.Duration { return 0 }
func (autoTask) View() map[string]interface{} { return map[string]interface{}{"kind": "auto"} }

func plantMines(rng *rand.Rand, cells, mines int) map[int]bool {
	planted := make(map[int]bool, mines)
	for _, idx := range rng.Perm(cells)[:mines] {
		planted[idx] = true
	}
	return planted
}

// gemTask is a grid where every safe reveal is a gem and any mine loses.
type gemTask struct {
	cells     int
	target    int
	mines     map[int]bool
	revealed  map[int]bool
	gemsFound int
	hitMine   bool
}

func newGemTask(rng *rand.Rand, cells, mines, target int) Task {
	return &gemTask{
		cells:    cells,
		target:   target,
		mines:    plantMines(rng, cells, mines),
		revealed: make(map[int]bool),
	}
}

func (t *gemTask) Act(cell int) error {
	if cell < 0 || cell >= t.cells || t.revealed[cell] || t.Completed() || t.Failed() {
		return ErrInvalidAction
	}
	t.revealed[cell] = true
	if t.mines[cell] {
		t.hitMine = true
		return nil
	}
	t.gemsFound++
	return nil
}

func (t *gemTask) Completed() bool { return !t.hitMine && t.gemsFound >= t.target }
func (t *gemTask) Failed() bool { return t.hitMine }
func (t *gemTask) Penalty() time.Duration { return 0 }

func (t *gemTask) View() map[string]interface{} {
	view := map[string]interface{}{
		"kind":       "gems",
		"cells":      t.cells,
		"revealed":   sortedKeys(t.revealed),
		"gems_found": t.gemsFound,
		"target":     t.target,
	}
	if t.hitMine {
		view["mines"] = sortedKeys(t.mines)
	}
	return view
}

// sweeperTask is classic minesweeper without flood fill: reveal every safe cell.
type sweeperTask struct {
	size      int
	mines     map[int]bool
	neighbors []int
	revealed  map[int]bool
	hitMine   bool
}

func newSweeperTask(rng *rand.Rand, size, mines int) Task {
	t := &sweeperTask{
		size:     size,
		mines:    plantMines(rng, size*size, mines),
		revealed: make(map[int]bool),
	}
	t.neighbors = make([]int, size*size)
	for i := range t.neighbors {
		t.neighbors[i] = t.countNeighbors(i)
	}
	return t
}

func (t *sweeperTask) countNeighbors(idx int) int {
	row, col := idx/t.size, idx%t.size
	count := 0
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			r, c := row+dr, col+dc
			if r < 0 || r >= t.size || c < 0 || c >= t.size {
				continue
			}
			if t.mines[r*t.size+c] {
				count++
			}
		}
	}
	return count
}

func (t *sweeperTask) Act(cell int) error {
	if cell < 0 || cell >= t.size*t.size || t.revealed[cell] || t.Completed() || t.Failed() {
		return ErrInvalidAction
	}
	t.revealed[cell] = true
	if t.mines[cell] {
		t.hitMine = true
	}
	return nil
}

func (t *sweeperTask) Completed() bool {
	return !t.hitMine && len(t.revealed) == t.size*t.size-len(t.mines)
}

func (t *sweeperTask) Failed() bool { return t.hitMine }
func (t *sweeperTask) Penalty() time.Duration { return 0 }

func (t *sweeperTask) View() map[string]interface{} {
	counts := make(map[int]int, len(t.revealed))
	for idx := range t.revealed {
		if !t.mines[idx] {
			counts[idx] = t.neighbors[idx]
		}
	}
	view := map[string]interface{}{
		"kind":      "minesweeper",
		"size":      t.size,
		"revealed":  counts,
		"remaining": t.size*t.size - len(t.mines) - len(counts),
	}
	if t.hitMine {
		view["mines"] = sortedKeys(t.mines)
	}
	return view
}

var memoryIcons = []string{"🍎", "🍌", "🍇", "🍉", "🥝", "🍓"}

// memoryTask flips pairs; a mismatched pair turns face down again.
type memoryTask struct {
	deck         []string
	matched      map[int]bool
	open         int
	lastMismatch []int
}

func newMemoryTask(rng *rand.Rand) Task {
	deck := make([]string, 0, len(memoryIcons)*2)
	deck = append(deck, memoryIcons...)
	deck = append(deck, memoryIcons...)
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	return &memoryTask{deck: deck, matched: make(map[int]bool), open: -1}
}

func (t *memoryTask) Act(cell int) error {
	if cell < 0 || cell >= len(t.deck) || t.matched[cell] || cell == t.open || t.Completed() {
		return ErrInvalidAction
	}

	t.lastMismatch = nil
	if t.open < 0 {
		t.open = cell
		return nil
	}

	first := t.open
	t.open = -1
	if t.deck[first] == t.deck[cell] {
		t.matched[first] = true
		t.matched[cell] = true
		return nil
	}
	t.lastMismatch = []int{first, cell}
	return nil
}

func (t *memoryTask) Completed() bool { return len(t.matched) == len(t.deck) }
func (t *memoryTask) Failed() bool { return false }
func (t *memoryTask) Penalty() time.Duration { return 0 }

func (t *memoryTask) View() map[string]interface{} {
	faceUp := make(map[int]string, len(t.matched)+2)
	for idx := range t.matched {
		faceUp[idx] = t.deck[idx]
	}
	if t.open >= 0 {
		faceUp[t.open] = t.deck[t.open]
	}
	for _, idx := range t.lastMismatch {
		faceUp[idx] = t.deck[idx]
	}
	return map[string]interface{}{
		"kind":          "memory",
		"cards":         len(t.deck),
		"face_up":       faceUp,
		"matched_pairs": len(t.matched) / 2,
		"last_mismatch": t.lastMismatch,
	}
}

type emojiSet struct {
	base, odd string
}

var emojiSets = []emojiSet{
	{"🍎", "🍅"}, {"🐶", "🦊"}, {"⚽", "🏀"}, {"⭐", "🌟"}, {"🍦", "🍧"},
}

const (
	emojiGridCells = 16
	emojiMissCost  = 2 * time.Second
)

type emojiRound struct {
	set     emojiSet
	oddCell int
}

// emojiTask asks for the odd emoji out across levels; misses cost time.
// Every level is dealt up front so Act never draws randomness.
type emojiTask struct {
	rounds []emojiRound
	level  int
	misses int
}

func newEmojiTask(rng *rand.Rand, levels int) Task {
	rounds := make([]emojiRound, levels)
	for i := range rounds {
		rounds[i] = emojiRound{
			set:     emojiSets[rng.Intn(len(emojiSets))],
			oddCell: rng.Intn(emojiGridCells),
		}
	}
	return &emojiTask{rounds: rounds, level: 1}
}

// current is the round being played, or the last one once completed.
func (t *emojiTask) current() emojiRound {
	if t.Completed() {
		return t.rounds[len(t.rounds)-1]
	}
	return t.rounds[t.level-1]
}

func (t *emojiTask) oddCell() int { return t.current().oddCell }

func (t *emojiTask) Act(cell int) error {
	if cell < 0 || cell >= emojiGridCells || t.Completed() {
		return ErrInvalidAction
	}
	if cell != t.oddCell() {
		t.misses++
		return nil
	}
	t.level++
	return nil
}

func (t *emojiTask) Completed() bool { return t.level > len(t.rounds) }
func (t *emojiTask) Failed() bool { return false }
func (t *emojiTask) Penalty() time.Duration { return time.Duration(t.misses) * emojiMissCost }

func (t *emojiTask) View() map[string]interface{} {
	round := t.current()
	grid := make([]string, emojiGridCells)
	for i := range grid {
		grid[i] = round.set.base
	}
	grid[round.oddCell] = round.set.odd
	return map[string]interface{}{
		"kind":   "emoji",
		"level":  t.level,
		"levels": len(t.rounds),
		"grid":   grid,
		"target": round.set.odd,
		"misses": t.misses,
	}
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k, ok := range m {
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Ints(keys)
	return keys
}
