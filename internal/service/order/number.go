package order

import (
	"fmt"
	"math/rand"
	"time"
)

// generateOrderNumber генерирует номер заказа вида ORD-<yyyyMMddHHmmss>-<4 цифры>.
// Временная метка даёт грубую упорядоченность, случайный суффикс разводит
// заказы одной секунды. Коллизии возможны и разрешаются повторной генерацией
// при нарушении unique constraint на номер.
func generateOrderNumber(now time.Time) string {
	timestamp := now.Format("20060102150405")
	suffix := rand.Intn(10000)
	return fmt.Sprintf("ORD-%s-%04d", timestamp, suffix)
}
