package scoring

import "math"

// Отображение категориальных значений в степень важности.
// Всё нераспознанное (включая пустую строку) даёт 0.
var severityMap = map[string]int{
	"Low":    1,
	"Medium": 2,
	"High":   3,
}

func Severity(value string) int {
	return severityMap[value]
}

// Score считает приоритет заявки по пяти категориальным полям.
// Инверсия для complexity и cross-functional effort: проще и дешевле — выше.
// Результат округляется до 2 знаков (half-up).
func Score(revenueImpact, auditRisk, complexity, crossFunctionalEffort, timelinePressure string) float64 {
	r := Severity(revenueImpact)
	a := Severity(auditRisk)
	c := Severity(complexity)
	x := Severity(crossFunctionalEffort)
	t := Severity(timelinePressure)

	score := float64(r)*0.35 +
		float64(a)*0.30 +
		float64(t)*0.20 +
		float64(4-c)*0.10 +
		float64(4-x)*0.05

	return math.Round(score*100) / 100
}

// IsQuickWin — быстрый выигрыш: достаточно высокий приоритет при
// невысокой сложности и вовлечённости, и тема актуальна по срокам.
func IsQuickWin(priorityScore float64, complexity, crossFunctionalEffort, timelinePressure string) bool {
	c := Severity(complexity)
	x := Severity(crossFunctionalEffort)
	t := Severity(timelinePressure)

	return priorityScore >= 2.2 && c <= 2 && x <= 2 && t >= 2
}
