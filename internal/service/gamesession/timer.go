package gamesession

import (
	"log"
	"sync"
	"time"
)

// RoundTimer - отменяемый посекундный таймер раунда. Каждую секунду вызывает
// onTick с оставшимся временем; при достижении нуля вызывает onExpire ровно
// один раз и завершается. Таймер привязан к порядковому номеру раунда:
// колбэки несут его с собой, чтобы получатель мог отбросить устаревший тик.
type RoundTimer struct {
	round int

	cancel   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartRoundTimer запускает таймер раунда на указанное число секунд
func StartRoundTimer(
	round int,
	seconds int,
	interval time.Duration,
	onTick func(round, remaining int),
	onExpire func(round int),
) *RoundTimer {
	t := &RoundTimer{
		round:  round,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go t.run(seconds, interval, onTick, onExpire)

	log.Printf("[RoundTimer] Таймер раунда #%d запущен на %d сек.", round, seconds)
	return t
}

// run выполняет цикл тиков до истечения времени или отмены
func (t *RoundTimer) run(
	seconds int,
	interval time.Duration,
	onTick func(round, remaining int),
	onExpire func(round int),
) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	remaining := seconds
	for {
		select {
		case <-ticker.C:
			remaining--
			onTick(t.round, remaining)

			if remaining <= 0 {
				log.Printf("[RoundTimer] Время раунда #%d истекло", t.round)
				onExpire(t.round)
				return
			}

		case <-t.cancel:
			log.Printf("[RoundTimer] Таймер раунда #%d отменен, осталось %d сек.", t.round, remaining)
			return
		}
	}
}

// Stop посылает сигнал отмены, не дожидаясь завершения горутины.
// Безопасен для повторных вызовов и вызова после истечения таймера.
func (t *RoundTimer) Stop() {
	t.stopOnce.Do(func() {
		close(t.cancel)
	})
}

// Wait блокируется до полной остановки горутины таймера
func (t *RoundTimer) Wait() {
	<-t.done
}

// Cancel синхронно останавливает таймер: после возврата ни один колбэк
// этого таймера больше не будет вызван.
func (t *RoundTimer) Cancel() {
	t.Stop()
	t.Wait()
}
