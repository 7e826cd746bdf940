package gamesession

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickCollector потокобезопасно накапливает колбэки таймера
type tickCollector struct {
	mu      sync.Mutex
	ticks   []int
	expired []int
}

func (c *tickCollector) onTick(round, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = append(c.ticks, remaining)
}

func (c *tickCollector) onExpire(round int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired = append(c.expired, round)
}

func (c *tickCollector) snapshot() ([]int, []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.ticks...), append([]int(nil), c.expired...)
}

func TestRoundTimer_TicksDownToExpiry(t *testing.T) {
	c := &tickCollector{}

	timer := StartRoundTimer(7, 3, 5*time.Millisecond, c.onTick, c.onExpire)
	timer.Wait()

	ticks, expired := c.snapshot()
	assert.Equal(t, []int{2, 1, 0}, ticks, "Тики должны идти по убыванию до нуля включительно")
	require.Len(t, expired, 1, "Истечение должно быть доставлено ровно один раз")
	assert.Equal(t, 7, expired[0], "Колбэк истечения несет номер своего раунда")
}

func TestRoundTimer_CancelStopsCallbacks(t *testing.T) {
	c := &tickCollector{}

	timer := StartRoundTimer(1, 1000, 5*time.Millisecond, c.onTick, c.onExpire)

	// Даем таймеру сделать несколько тиков и отменяем
	time.Sleep(20 * time.Millisecond)
	timer.Cancel()

	ticksAtCancel, _ := c.snapshot()

	// После возврата из Cancel ни один колбэк больше не должен прийти
	time.Sleep(30 * time.Millisecond)
	ticksAfter, expired := c.snapshot()

	assert.Equal(t, ticksAtCancel, ticksAfter, "После Cancel тики не должны доставляться")
	assert.Empty(t, expired, "Отмененный таймер не должен доходить до истечения")
}

func TestRoundTimer_StopIsIdempotent(t *testing.T) {
	timer := StartRoundTimer(1, 1000, 5*time.Millisecond, func(int, int) {}, func(int) {})

	// Повторные Stop и Cancel не должны паниковать
	timer.Stop()
	timer.Stop()
	timer.Cancel()
}

func TestRoundTimer_StopAfterExpiryIsSafe(t *testing.T) {
	timer := StartRoundTimer(1, 1, 5*time.Millisecond, func(int, int) {}, func(int) {})
	timer.Wait()

	timer.Stop()
}
