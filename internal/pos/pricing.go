package pos

import "math"

// PointRate — сумма чека в батах, за которую начисляется один балл.
const PointRate = 100

// ClampRedeem ограничивает списание баллов: не больше запрошенного,
// не больше баланса участника и не больше суммы чека. Результат
// никогда не отрицателен.
func ClampRedeem(requested, points int, grandTotal float64) int {
	if requested < 0 {
		requested = 0
	}
	if requested > points {
		requested = points
	}
	if float64(requested) > grandTotal {
		requested = int(math.Max(grandTotal, 0))
	}
	return requested
}

// EarnedPoints возвращает число баллов, начисляемых за чек: один балл
// за каждые полные PointRate батов итоговой суммы. Без привязанного
// участника баллы не начисляются.
func EarnedPoints(netTotal float64, hasMember bool) int {
	if !hasMember || netTotal <= 0 {
		return 0
	}
	return int(math.Floor(netTotal / PointRate))
}
