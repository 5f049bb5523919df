package domain

// QualityLevel is the ordinal display quality of a connection or media
// dimension. Levels are ordered from best to worst.
type QualityLevel string

const (
	QualityExcellent    QualityLevel = "excellent"
	QualityGood         QualityLevel = "good"
	QualityFair         QualityLevel = "fair"
	QualityPoor         QualityLevel = "poor"
	QualityDisconnected QualityLevel = "disconnected"
)

var qualityRank = map[QualityLevel]int{
	QualityExcellent:    0,
	QualityGood:         1,
	QualityFair:         2,
	QualityPoor:         3,
	QualityDisconnected: 4,
}

// Rank returns the ordinal position of the level, higher is worse.
func (q QualityLevel) Rank() int {
	if r, ok := qualityRank[q]; ok {
		return r
	}
	return qualityRank[QualityGood]
}

// WorstQuality returns the more pessimistic of two levels.
func WorstQuality(a, b QualityLevel) QualityLevel {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

// QualityFromConnectionPhase maps the connection phase to a display quality.
func QualityFromConnectionPhase(p ConnectionPhase) QualityLevel {
	switch p {
	case ConnectionConnected:
		return QualityExcellent
	case ConnectionConnecting:
		return QualityGood
	case ConnectionDisconnected:
		return QualityPoor
	case ConnectionFailed, ConnectionClosed:
		return QualityDisconnected
	default:
		return QualityGood
	}
}

// QualityFromICEPhase maps the ICE phase to a display quality.
func QualityFromICEPhase(p ICEPhase) QualityLevel {
	switch p {
	case ICEConnected, ICECompleted:
		return QualityExcellent
	case ICEChecking:
		return QualityGood
	case ICEDisconnected:
		return QualityPoor
	case ICEFailed, ICEClosed:
		return QualityDisconnected
	default:
		return QualityGood
	}
}

// DeriveQuality combines the per-phase mappings; the more pessimistic of the
// two governs display so a stale better label never hides a degradation.
func DeriveQuality(cp ConnectionPhase, ip ICEPhase) QualityLevel {
	return WorstQuality(QualityFromConnectionPhase(cp), QualityFromICEPhase(ip))
}

// ScoreToQuality maps a 0-100 composite score to a display level.
func ScoreToQuality(score float64) QualityLevel {
	switch {
	case score >= 90:
		return QualityExcellent
	case score >= 70:
		return QualityGood
	case score >= 50:
		return QualityFair
	case score >= 20:
		return QualityPoor
	default:
		return QualityDisconnected
	}
}
